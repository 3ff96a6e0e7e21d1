// Package attachments rewrites mail attachments that reference object-store
// objects into attachments carrying signed download URLs, and converts
// CLI-friendly specifiers such as "s3://bucket/key :: report.pdf" into
// attachments the rewrite understands.
package attachments
