package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"labelreel/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "extract", "decode", "ffmpeg exited", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"extract", "decode", "ffmpeg exited"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapWithoutDetail(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker by default, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestCategory(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{services.Wrap(services.ErrValidation, "project", "labels", "unknown class", nil), "validation"},
		{fmt.Errorf("outer: %w", services.Wrap(services.ErrConfiguration, "", "", "bad", nil)), "configuration"},
		{services.Wrap(services.ErrExternalTool, "", "", "", nil), "external_tool"},
		{services.Wrap(services.ErrNotFound, "", "", "", nil), "not_found"},
		{services.Wrap(services.ErrTimeout, "", "", "", nil), "timeout"},
		{errors.New("plain"), "transient"},
	}
	for _, tt := range tests {
		if got := services.Category(tt.err); got != tt.want {
			t.Errorf("Category(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
