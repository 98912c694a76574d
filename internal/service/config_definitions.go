package service

// 配置项的声明式定义。每个 (category, key) 配置对象由一组字段规则描述，
// 更新时据此做类型、范围、枚举校验，敏感字段加密存储、脱敏回传。

// FieldType is the expected JSON type of a config field.
type FieldType int

const (
	FieldString FieldType = iota
	FieldNumber
	FieldStringList
)

// FieldRule validates one field of a config object.
type FieldRule struct {
	Type      FieldType
	Required  bool
	Min       *float64
	Max       *float64
	Allowed   []string // enum for strings, allowed subset for string lists
	Sensitive bool     // encrypted at rest, masked on read
}

func minMax(min, max float64) (*float64, *float64) {
	return &min, &max
}

// configScopeLevels declares at which scopes each (category, key) may be
// set. Two-level entries stop at the tenant; three-level entries allow
// per-user overrides.
var configScopeLevels = map[string]map[string][]string{
	"embedding":    {"default": {"system", "tenant"}},
	"vector_store": {"default": {"system", "tenant"}},
	"doc": {
		"upload": {"system", "tenant"},
		"chunk":  {"system", "tenant"},
	},
	"llm":       {"default": {"system", "tenant", "user"}},
	"rerank":    {"default": {"system", "tenant", "user"}},
	"retrieval": {"default": {"system", "tenant", "user"}},
}

// configDefinitions is the full validation schema, category -> key -> field
// rules.
var configDefinitions = map[string]map[string]map[string]FieldRule{
	"llm": {
		"default": {
			"provider":    {Type: FieldString, Required: true},
			"base_url":    {Type: FieldString, Required: true},
			"api_key":     {Type: FieldString, Required: true, Sensitive: true},
			"model":       {Type: FieldString, Required: true},
			"timeout":     numberRule(1, 120),
			"temperature": numberRule(0, 1),
			"max_tokens":  numberRule(1, 128000),
		},
	},
	"rerank": {
		"default": {
			"provider": {Type: FieldString, Required: true},
			"base_url": {Type: FieldString},
			"api_key":  {Type: FieldString, Sensitive: true},
			"model":    {Type: FieldString, Required: true},
			"timeout":  numberRule(1, 120),
		},
	},
	"embedding": {
		"default": {
			"provider": {Type: FieldString, Required: true},
			"base_url": {Type: FieldString},
			"api_key":  {Type: FieldString, Sensitive: true},
			"model":    {Type: FieldString, Required: true},
		},
	},
	"vector_store": {
		"default": {
			"provider":          {Type: FieldString, Required: true},
			"base_url":          {Type: FieldString, Required: true},
			"api_key":           {Type: FieldString, Sensitive: true},
			"collection_prefix": {Type: FieldString},
		},
	},
	"doc": {
		"upload": {
			"upload_types":     {Type: FieldStringList, Required: true, Allowed: []string{"txt", "md", "pdf", "word"}},
			"max_file_size_mb": requiredNumberRule(1, 1024),
		},
		"chunk": {
			"strategy": {Type: FieldString, Required: true, Allowed: []string{"fixed", "paragraph", "keyword"}},
			"size":     requiredNumberRule(1, 5000),
			"overlap":  requiredNumberRule(0, 4000),
		},
	},
	"retrieval": {
		"default": {
			"top_k":                requiredNumberRule(1, 200),
			"similarity_threshold": requiredNumberRule(0, 1),
		},
	},
}

func numberRule(min, max float64) FieldRule {
	lo, hi := minMax(min, max)
	return FieldRule{Type: FieldNumber, Min: lo, Max: hi}
}

func requiredNumberRule(min, max float64) FieldRule {
	rule := numberRule(min, max)
	rule.Required = true
	return rule
}

// definitionFor returns the field rules of one config object, or nil when
// the (category, key) pair is not defined.
func definitionFor(category, key string) map[string]FieldRule {
	keys, ok := configDefinitions[category]
	if !ok {
		return nil
	}
	return keys[key]
}

// scopeAllowed reports whether the (category, key) pair may be configured at
// the given scope.
func scopeAllowed(category, key, scope string) bool {
	keys, ok := configScopeLevels[category]
	if !ok {
		return false
	}
	for _, s := range keys[key] {
		if s == scope {
			return true
		}
	}
	return false
}
