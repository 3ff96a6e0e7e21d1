package grpcutil

// MaxMessageSizeBytes defines the shared send/receive limit used by both the
// signing server and its clients. Mails travel with their inline attachment
// content, so the gRPC 4MiB default is too small.
const MaxMessageSizeBytes = 32 * 1024 * 1024
