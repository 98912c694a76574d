package service

import (
	"errors"
	"strings"
	"testing"

	"github.com/choudian/document-QA-system/internal/models"
)

func TestValidateItems_LLMConfig(t *testing.T) {
	s := &ConfigService{}

	valid := []ConfigItem{{
		Category: "llm",
		Key:      "default",
		Value: map[string]interface{}{
			"provider":    "openai",
			"base_url":    "https://api.openai.com/v1",
			"api_key":     "sk-abc",
			"model":       "gpt-4o-mini",
			"temperature": 0.7,
		},
	}}
	if err := s.validateItems(models.ScopeSystem, valid); err != nil {
		t.Errorf("validateItems(valid llm) error = %v", err)
	}

	missing := []ConfigItem{{
		Category: "llm",
		Key:      "default",
		Value:    map[string]interface{}{"provider": "openai"},
	}}
	if err := s.validateItems(models.ScopeSystem, missing); !errors.Is(err, ErrValidation) {
		t.Errorf("validateItems(missing required) error = %v, want ErrValidation", err)
	}

	badRange := []ConfigItem{{
		Category: "llm",
		Key:      "default",
		Value: map[string]interface{}{
			"provider": "openai", "base_url": "u", "api_key": "k", "model": "m",
			"temperature": 1.5,
		},
	}}
	if err := s.validateItems(models.ScopeSystem, badRange); !errors.Is(err, ErrValidation) {
		t.Errorf("validateItems(temperature out of range) error = %v, want ErrValidation", err)
	}
}

func TestValidateItems_UnknownAndScope(t *testing.T) {
	s := &ConfigService{}

	unknown := []ConfigItem{{Category: "nope", Key: "default", Value: map[string]interface{}{}}}
	if err := s.validateItems(models.ScopeSystem, unknown); !errors.Is(err, ErrValidation) {
		t.Errorf("validateItems(unknown category) error = %v, want ErrValidation", err)
	}

	// embedding is a two-level config: user scope must be rejected
	userScoped := []ConfigItem{{
		Category: "embedding",
		Key:      "default",
		Value:    map[string]interface{}{"provider": "openai", "model": "m"},
	}}
	if err := s.validateItems(models.ScopeUser, userScoped); !errors.Is(err, ErrValidation) {
		t.Errorf("validateItems(embedding at user scope) error = %v, want ErrValidation", err)
	}
	if err := s.validateItems(models.ScopeTenant, userScoped); err != nil {
		t.Errorf("validateItems(embedding at tenant scope) error = %v", err)
	}
}

func TestValidateItems_ChunkOverlapCrossField(t *testing.T) {
	s := &ConfigService{}

	bad := []ConfigItem{{
		Category: "doc",
		Key:      "chunk",
		Value: map[string]interface{}{
			"strategy": "fixed", "size": 100.0, "overlap": 100.0,
		},
	}}
	if err := s.validateItems(models.ScopeSystem, bad); !errors.Is(err, ErrValidation) {
		t.Errorf("validateItems(overlap >= size) error = %v, want ErrValidation", err)
	}

	good := []ConfigItem{{
		Category: "doc",
		Key:      "chunk",
		Value: map[string]interface{}{
			"strategy": "paragraph", "size": 400.0, "overlap": 100.0,
		},
	}}
	if err := s.validateItems(models.ScopeSystem, good); err != nil {
		t.Errorf("validateItems(valid chunk) error = %v", err)
	}
}

func TestValidateItems_UploadTypesSubset(t *testing.T) {
	s := &ConfigService{}

	bad := []ConfigItem{{
		Category: "doc",
		Key:      "upload",
		Value: map[string]interface{}{
			"upload_types":     []interface{}{"txt", "exe"},
			"max_file_size_mb": 50.0,
		},
	}}
	if err := s.validateItems(models.ScopeSystem, bad); !errors.Is(err, ErrValidation) {
		t.Errorf("validateItems(disallowed upload type) error = %v, want ErrValidation", err)
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	secret := "sk-1234567890abcdef"
	enc := encrypt(secret)
	if !strings.HasPrefix(enc, encPrefix) {
		t.Errorf("encrypt() = %q, want %q prefix", enc, encPrefix)
	}
	if got := decrypt(enc); got != secret {
		t.Errorf("decrypt(encrypt(x)) = %q, want %q", got, secret)
	}
	// non-ENC values pass through untouched
	if got := decrypt("plain-value"); got != "plain-value" {
		t.Errorf("decrypt(plain) = %q, want unchanged", got)
	}
	// corrupted payloads fall back to the raw value
	if got := decrypt("ENC:!!!not-base64!!!"); got != "ENC:!!!not-base64!!!" {
		t.Errorf("decrypt(bad base64) = %q, want unchanged", got)
	}
}

func TestMask(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", ""},
		{"ab", "**"},
		{"abcdef", "a****f"},
		{"sk-1234567890abcdef", "sk-1***********cdef"},
	}
	for _, tc := range cases {
		if got := mask(tc.in); got != tc.want {
			t.Errorf("mask(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMaskObject(t *testing.T) {
	rules := definitionFor("llm", "default")
	obj := map[string]interface{}{
		"provider": "openai",
		"api_key":  encrypt("sk-1234567890abcdef"),
	}
	masked := maskObject(obj, rules)
	if masked["provider"] != "openai" {
		t.Errorf("provider = %v, want unchanged", masked["provider"])
	}
	key, _ := masked["api_key"].(string)
	if !strings.Contains(key, "*") || strings.Contains(key, "1234567890") {
		t.Errorf("api_key = %q, want masked", key)
	}
}

func TestIsEmptyValue(t *testing.T) {
	cases := []struct {
		name  string
		value map[string]interface{}
		want  bool
	}{
		{"nil", nil, true},
		{"empty map", map[string]interface{}{}, true},
		{"all blank fields", map[string]interface{}{"a": "", "b": nil, "c": []interface{}{}}, true},
		{"has string", map[string]interface{}{"a": "x"}, false},
		{"has number", map[string]interface{}{"a": 1.0}, false},
	}
	for _, tc := range cases {
		if got := isEmptyValue(tc.value); got != tc.want {
			t.Errorf("isEmptyValue(%s) = %v, want %v", tc.name, got, tc.want)
		}
	}
}
