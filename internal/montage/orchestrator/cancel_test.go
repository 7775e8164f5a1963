package orchestrator

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestRunRegistryCancelStopsOnlyItsOwnVideo(t *testing.T) {
	r := newRunRegistry()
	videoA := uuid.New()
	videoB := uuid.New()

	ctxA, doneA := r.begin(context.Background(), videoA)
	ctxB, doneB := r.begin(context.Background(), videoB)
	defer doneA()
	defer doneB()

	if !r.cancel(videoA) {
		t.Fatalf("expected cancel(videoA) to find a registered run")
	}
	select {
	case <-ctxA.Done():
	default:
		t.Fatalf("expected videoA's context to be canceled")
	}
	select {
	case <-ctxB.Done():
		t.Fatalf("videoB's context must not be canceled by videoA's cancellation")
	default:
	}
}

func TestRunRegistryCancelUnknownVideoReportsFalse(t *testing.T) {
	r := newRunRegistry()
	if r.cancel(uuid.New()) {
		t.Fatalf("expected cancel of an unregistered video to report false")
	}
}

func TestRunRegistryDoneDeregisters(t *testing.T) {
	r := newRunRegistry()
	videoID := uuid.New()
	_, done := r.begin(context.Background(), videoID)
	done()
	if r.cancel(videoID) {
		t.Fatalf("expected cancel after done() to find nothing registered")
	}
}
