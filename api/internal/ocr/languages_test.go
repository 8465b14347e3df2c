package ocr

import (
	"errors"
	"reflect"
	"testing"
)

func TestResolveAllowList(t *testing.T) {
	langs, err := NewLanguages([]string{"eng", "rus", "rus+eng"}, "rus+eng")
	if err != nil {
		t.Fatalf("NewLanguages() error = %v", err)
	}
	tests := []struct {
		hint    string
		want    Language
		wantErr bool
	}{
		{"eng", "eng", false},
		{"rus+eng", "rus+eng", false},
		{" eng ", "eng", false},
		{"", "rus+eng", false},
		{"xyz", "", true},
		{"eng+rus", "", true},
		{"ENG", "", true},
	}
	for _, tt := range tests {
		got, err := langs.Resolve(tt.hint)
		if tt.wantErr {
			if !errors.Is(err, ErrUnsupportedLanguage) {
				t.Fatalf("Resolve(%q) error = %v, want ErrUnsupportedLanguage", tt.hint, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("Resolve(%q) = %q, %v; want %q", tt.hint, got, err, tt.want)
		}
	}
}

func TestNewLanguagesRejectsBadConfig(t *testing.T) {
	if _, err := NewLanguages([]string{"eng"}, "deu"); err == nil {
		t.Fatalf("expected error for default outside allow-list")
	}
	if _, err := NewLanguages(nil, "eng"); err == nil {
		t.Fatalf("expected error for empty allow-list")
	}
	if _, err := NewLanguages([]string{"eng+"}, "eng+"); err == nil {
		t.Fatalf("expected error for malformed tag")
	}
}

func TestLanguageParts(t *testing.T) {
	if got := Language("rus+eng").Parts(); !reflect.DeepEqual(got, []string{"rus", "eng"}) {
		t.Fatalf("Parts() = %v", got)
	}
}

func TestListPutsDefaultFirst(t *testing.T) {
	langs, _ := NewLanguages([]string{"rus", "eng", "deu"}, "rus")
	want := []Language{"rus", "deu", "eng"}
	if got := langs.List(); !reflect.DeepEqual(got, want) {
		t.Fatalf("List() = %v, want %v", got, want)
	}
}
