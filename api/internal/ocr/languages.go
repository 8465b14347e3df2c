package ocr

import (
	"fmt"
	"sort"
	"strings"
)

// Language is a recognition language tag such as "eng" or "rus+eng".
type Language string

// Parts splits a combined tag into its single-language components.
func (l Language) Parts() []string {
	return strings.Split(string(l), "+")
}

func (l Language) String() string { return string(l) }

// Languages is the fixed allow-list of tags accepted from clients.
type Languages struct {
	allowed map[Language]struct{}
	def     Language
}

// NewLanguages builds an allow-list. The default tag must be a member.
func NewLanguages(tags []string, def string) (*Languages, error) {
	l := &Languages{allowed: make(map[Language]struct{}, len(tags))}
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		for _, p := range strings.Split(t, "+") {
			if p == "" {
				return nil, fmt.Errorf("malformed language tag %q", t)
			}
		}
		l.allowed[Language(t)] = struct{}{}
	}
	if len(l.allowed) == 0 {
		return nil, fmt.Errorf("language allow-list is empty")
	}
	if _, ok := l.allowed[Language(def)]; !ok {
		return nil, fmt.Errorf("default language %q is not in the allow-list", def)
	}
	l.def = Language(def)
	return l, nil
}

// Resolve returns the default tag for an empty hint and rejects tags outside the allow-list.
func (l *Languages) Resolve(hint string) (Language, error) {
	hint = strings.TrimSpace(hint)
	if hint == "" {
		return l.def, nil
	}
	if _, ok := l.allowed[Language(hint)]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, hint)
	}
	return Language(hint), nil
}

func (l *Languages) Default() Language { return l.def }

// List returns the allowed tags sorted, default first.
func (l *Languages) List() []Language {
	out := make([]Language, 0, len(l.allowed))
	for t := range l.allowed {
		if t != l.def {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return append([]Language{l.def}, out...)
}
