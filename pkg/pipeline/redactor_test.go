package pipeline

import (
	"context"
	"testing"

	"umbra-hq/umbra/pkg/span"
)

func TestTokenRedactorReplace(t *testing.T) {
	ctx := context.Background()
	r := NewTokenRedactor()

	tests := []struct {
		name         string
		text         string
		spans        []span.Span
		want         string
		wantReplaced int
	}{
		{
			name: "single span",
			text: "SSN 123-45-6789 on file",
			spans: []span.Span{
				{FilterType: span.FilterSSN, CharacterStart: 4, CharacterEnd: 15},
			},
			want:         "SSN {{SSN}} on file",
			wantReplaced: 1,
		},
		{
			name: "multiple spans keep earlier offsets valid",
			text: "call 555-1234 or mail jan@example.com",
			spans: []span.Span{
				{FilterType: span.FilterPhone, CharacterStart: 5, CharacterEnd: 13},
				{FilterType: span.FilterEmail, CharacterStart: 22, CharacterEnd: 37},
			},
			want:         "call {{PHONE}} or mail {{EMAIL}}",
			wantReplaced: 2,
		},
		{
			name: "input order does not matter",
			text: "call 555-1234 or mail jan@example.com",
			spans: []span.Span{
				{FilterType: span.FilterEmail, CharacterStart: 22, CharacterEnd: 37},
				{FilterType: span.FilterPhone, CharacterStart: 5, CharacterEnd: 13},
			},
			want:         "call {{PHONE}} or mail {{EMAIL}}",
			wantReplaced: 2,
		},
		{
			name: "overlapping span skipped",
			text: "id 123456789",
			spans: []span.Span{
				{FilterType: span.FilterSSN, CharacterStart: 3, CharacterEnd: 12},
				{FilterType: span.FilterAccount, CharacterStart: 3, CharacterEnd: 9},
			},
			want:         "id {{SSN}}",
			wantReplaced: 1,
		},
		{
			name:         "no spans",
			text:         "nothing sensitive",
			spans:        nil,
			want:         "nothing sensitive",
			wantReplaced: 0,
		},
		{
			name: "multibyte text uses character offsets",
			text: "pätient jan@example.com",
			spans: []span.Span{
				{FilterType: span.FilterEmail, CharacterStart: 8, CharacterEnd: 23},
			},
			want:         "pätient {{EMAIL}}",
			wantReplaced: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, replaced, err := r.Redact(ctx, tt.text, tt.spans)
			if err != nil {
				t.Fatalf("Redact() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Redact() = %q, want %q", got, tt.want)
			}
			if replaced != tt.wantReplaced {
				t.Errorf("replaced = %d, want %d", replaced, tt.wantReplaced)
			}
		})
	}
}

func TestTokenRedactorOutOfRange(t *testing.T) {
	r := NewTokenRedactor()

	tests := []struct {
		name string
		s    span.Span
	}{
		{"negative start", span.Span{FilterType: span.FilterSSN, CharacterStart: -1, CharacterEnd: 3}},
		{"end past text", span.Span{FilterType: span.FilterSSN, CharacterStart: 0, CharacterEnd: 100}},
		{"empty range", span.Span{FilterType: span.FilterSSN, CharacterStart: 3, CharacterEnd: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := r.Redact(context.Background(), "short text", []span.Span{tt.s}); err == nil {
				t.Error("Redact() should reject out-of-range span")
			}
		})
	}
}

func TestTokenRedactorCustomDelimiters(t *testing.T) {
	r := &TokenRedactor{Open: "[", Close: "]"}

	got, _, err := r.Redact(context.Background(), "SSN 123-45-6789", []span.Span{
		{FilterType: span.FilterSSN, CharacterStart: 4, CharacterEnd: 15},
	})
	if err != nil {
		t.Fatalf("Redact() error = %v", err)
	}
	if want := "SSN [SSN]"; got != want {
		t.Errorf("Redact() = %q, want %q", got, want)
	}
}
