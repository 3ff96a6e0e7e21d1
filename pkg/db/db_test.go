package db

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/tyemirov/signedattach/pkg/model"
)

func TestInitDBCreatesSchema(t *testing.T) {
	t.Helper()

	databasePath := filepath.Join(t.TempDir(), "signedattach.db")
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))

	database, initError := InitDB(databasePath, logger)
	if initError != nil {
		t.Fatalf("init db error: %v", initError)
	}

	expiresAt := time.Now().UTC().Add(15 * time.Minute)
	request := model.SigningRequest{
		RequestID:       "db-test",
		AttachmentCount: 3,
		SignedCount:     2,
		Status:          model.StatusSigned,
		Objects: []model.SignedObject{
			{Position: 2, Bucket: "reports", Key: "b.pdf", ExpiresAt: expiresAt},
			{Position: 0, Bucket: "reports", Key: "a.pdf", ExpiresAt: expiresAt},
		},
	}

	if createError := model.CreateSigningRequest(context.Background(), database, &request); createError != nil {
		t.Fatalf("create signing request error: %v", createError)
	}

	fetched, fetchError := model.GetSigningRequestByID(context.Background(), database, "db-test")
	if fetchError != nil {
		t.Fatalf("fetch signing request error: %v", fetchError)
	}
	if fetched.RequestID != "db-test" || fetched.SignedCount != 2 {
		t.Fatalf("unexpected signing request %#v", fetched)
	}
	if len(fetched.Objects) != 2 || fetched.Objects[0].Key != "a.pdf" || fetched.Objects[1].Position != 2 {
		t.Fatalf("expected objects ordered by position, got %#v", fetched.Objects)
	}

	response := model.NewSigningRequestResponse(*fetched)
	if response.Status != model.StatusSigned || len(response.Objects) != 2 {
		t.Fatalf("unexpected response %#v", response)
	}
}

func TestGetSigningRequestByIDMissing(t *testing.T) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	database, initError := InitDB(filepath.Join(t.TempDir(), "missing.db"), logger)
	if initError != nil {
		t.Fatalf("init db error: %v", initError)
	}

	_, fetchError := model.GetSigningRequestByID(context.Background(), database, "absent")
	if !errors.Is(fetchError, model.ErrSigningRequestNotFound) {
		t.Fatalf("expected ErrSigningRequestNotFound, got %v", fetchError)
	}
}
