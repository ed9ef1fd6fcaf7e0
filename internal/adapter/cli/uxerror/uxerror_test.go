package uxerror

import (
	"errors"
	"strings"
	"testing"

	"ironbank/internal/domain"
)

func TestHumanizeSentinels(t *testing.T) {
	tests := []struct {
		err   error
		title string
		code  domain.ErrorCode
	}{
		{domain.NewDomainError("Store.Read", domain.ErrNotFound, "/x.json"), "Ledger Not Found", domain.CodeNotFound},
		{domain.NewDomainError("Store.Delete", domain.ErrPathOutsideSandbox, "/etc/passwd"), "Path Outside Ledgers Directory", domain.CodePathOutsideSandbox},
		{domain.NewDomainError("Resources.Find", domain.ErrResourceMissing, ""), "Tutorial Template Missing", domain.CodeResourceMissing},
		{domain.NewDomainError("Store.Dir", domain.ErrDirectoryUnavailable, ""), "Documents Folder Unavailable", domain.CodeDirectoryUnavailable},
		{domain.NewDomainError("Store.Save", domain.ErrIO, "disk full"), "File System Error", domain.CodeIO},
	}
	for _, tt := range tests {
		fe := Humanize(tt.err)
		if fe.Title != tt.title {
			t.Errorf("Humanize(%v).Title = %q, want %q", tt.err, fe.Title, tt.title)
		}
		if fe.Code != tt.code {
			t.Errorf("Humanize(%v).Code = %q, want %q", tt.err, fe.Code, tt.code)
		}
		if len(fe.Hints) == 0 {
			t.Errorf("Humanize(%v) has no hints", tt.err)
		}
	}
}

func TestHumanizeInvalidInputKeepsDetail(t *testing.T) {
	err := domain.NewDomainError("Store.Save", domain.ErrInvalidInput, "filename contains a path separator")
	fe := Humanize(err)
	if !strings.Contains(fe.Message, "path separator") {
		t.Errorf("Message = %q", fe.Message)
	}
}

func TestHumanizeFallback(t *testing.T) {
	fe := Humanize(errors.New("something odd"))
	if fe.Title != "Unexpected Error" {
		t.Errorf("Title = %q", fe.Title)
	}
	if fe.Code != domain.CodeUnknown {
		t.Errorf("Code = %q", fe.Code)
	}
}

func TestRenderIncludesHints(t *testing.T) {
	out := Humanize(domain.NewDomainError("Store.Read", domain.ErrNotFound, "")).Render()
	for _, want := range []string{"Ledger Not Found", "NOT_FOUND", "Suggestions:", "ironbank list"} {
		if !strings.Contains(out, want) {
			t.Errorf("Render() missing %q:\n%s", want, out)
		}
	}
}
