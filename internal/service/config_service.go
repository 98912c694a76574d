package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/choudian/document-QA-system/internal/models"
	"github.com/choudian/document-QA-system/internal/rag/embeddings"
	"github.com/choudian/document-QA-system/internal/rag/llms"
	"github.com/choudian/document-QA-system/internal/rag/rerankers"
	"github.com/choudian/document-QA-system/internal/repository"
	"github.com/choudian/document-QA-system/pkg/logger"
)

// ErrValidation marks a request rejected by input validation. Handlers map
// it to HTTP 400.
var ErrValidation = errors.New("validation failed")

// encPrefix marks an encrypted config value.
const encPrefix = "ENC:"

// ConfigItem is one config object submitted by a client.
type ConfigItem struct {
	Category string                 `json:"category" binding:"required"`
	Key      string                 `json:"key" binding:"required"`
	Value    map[string]interface{} `json:"value"`
}

// ConfigService 管理三级（系统/租户/用户）对象化配置：
// 声明式 schema 校验，敏感字段加密存储、读取时脱敏，
// 运行时按 系统 < 租户 < 用户 的优先级合并出生效配置。
type ConfigService struct {
	repo *repository.ConfigRepository
	log  *logger.Logger
}

// NewConfigService creates a new ConfigService.
func NewConfigService(repo *repository.ConfigRepository) *ConfigService {
	return &ConfigService{repo: repo, log: logger.New("config")}
}

// --- 读取 ---

// GetEffectiveConfig 返回合并后的生效配置，敏感字段脱敏。
func (s *ConfigService) GetEffectiveConfig(ctx context.Context, tenantID, userID *string) (map[string]map[string]map[string]interface{}, error) {
	merged := map[string]map[string]map[string]interface{}{}

	scopes := []struct {
		scope   string
		scopeID *string
	}{
		{models.ScopeSystem, nil},
		{models.ScopeTenant, tenantID},
		{models.ScopeUser, userID},
	}

	for _, sc := range scopes {
		if sc.scope != models.ScopeSystem && (sc.scopeID == nil || *sc.scopeID == "") {
			continue
		}
		entries, err := s.repo.ListScope(ctx, sc.scope, sc.scopeID)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			value, err := decodeValue(entry.Value)
			if err != nil {
				s.log.WithError(err).WithFields(map[string]interface{}{
					"category": entry.Category, "key": entry.Key,
				}).Warn("配置值解析失败，已跳过")
				continue
			}
			masked := maskObject(value, definitionFor(entry.Category, entry.Key))
			if merged[entry.Category] == nil {
				merged[entry.Category] = map[string]map[string]interface{}{}
			}
			merged[entry.Category][entry.Key] = masked
		}
	}

	return merged, nil
}

// ListScopeConfigs 按作用域列出配置（不合并），敏感字段脱敏。
func (s *ConfigService) ListScopeConfigs(ctx context.Context, scope string, scopeID *string) (map[string]map[string]map[string]interface{}, error) {
	if err := checkScope(scope, scopeID); err != nil {
		return nil, err
	}

	entries, err := s.repo.ListScope(ctx, scope, scopeID)
	if err != nil {
		return nil, err
	}

	result := map[string]map[string]map[string]interface{}{}
	for _, entry := range entries {
		value, err := decodeValue(entry.Value)
		if err != nil {
			continue
		}
		if result[entry.Category] == nil {
			result[entry.Category] = map[string]map[string]interface{}{}
		}
		result[entry.Category][entry.Key] = maskObject(value, definitionFor(entry.Category, entry.Key))
	}
	return result, nil
}

// --- 更新 ---

// UpdateScopeConfigs 校验并保存一批配置。租户/用户作用域下提交空对象
// 表示删除该配置项，回退到上一层默认值。
func (s *ConfigService) UpdateScopeConfigs(ctx context.Context, scope string, scopeID *string, items []ConfigItem) error {
	if err := checkScope(scope, scopeID); err != nil {
		return err
	}

	var upserts, deletions []ConfigItem
	for _, item := range items {
		if scope != models.ScopeSystem && isEmptyValue(item.Value) {
			deletions = append(deletions, item)
		} else {
			upserts = append(upserts, item)
		}
	}

	if err := s.validateItems(scope, upserts); err != nil {
		return err
	}

	for _, item := range upserts {
		encrypted := encryptObject(item.Value, definitionFor(item.Category, item.Key))
		raw, err := json.Marshal(encrypted)
		if err != nil {
			return fmt.Errorf("序列化配置失败: %w", err)
		}
		entry := &models.ConfigEntry{
			Scope:    scope,
			ScopeID:  scopeID,
			Category: item.Category,
			Key:      item.Key,
			Value:    datatypes.JSON(raw),
		}
		if err := s.repo.Upsert(ctx, entry); err != nil {
			return fmt.Errorf("保存配置 %s.%s 失败: %w", item.Category, item.Key, err)
		}
	}

	for _, item := range deletions {
		err := s.repo.Delete(ctx, scope, scopeID, item.Category, item.Key)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("删除配置 %s.%s 失败: %w", item.Category, item.Key, err)
		}
	}

	return nil
}

// ValidateItems 只做校验不落库，供前端保存前预检。
func (s *ConfigService) ValidateItems(scope string, items []ConfigItem) error {
	return s.validateItems(scope, items)
}

func (s *ConfigService) validateItems(scope string, items []ConfigItem) error {
	for _, item := range items {
		if item.Category == "" || item.Key == "" {
			return fmt.Errorf("%w: category/key 不能为空", ErrValidation)
		}
		rules := definitionFor(item.Category, item.Key)
		if rules == nil {
			return fmt.Errorf("%w: 不支持的配置项 %s.%s", ErrValidation, item.Category, item.Key)
		}
		if !scopeAllowed(item.Category, item.Key, scope) {
			return fmt.Errorf("%w: %s.%s 不支持 %s 级配置", ErrValidation, item.Category, item.Key, scope)
		}
		if err := validateObject(item.Category+"."+item.Key, item.Value, rules); err != nil {
			return err
		}
	}

	// 跨字段校验：doc.chunk.overlap 必须小于 doc.chunk.size。
	for _, item := range items {
		if item.Category != "doc" || item.Key != "chunk" {
			continue
		}
		size, sizeOK := numberField(item.Value, "size")
		overlap, overlapOK := numberField(item.Value, "overlap")
		if sizeOK && overlapOK && overlap >= size {
			return fmt.Errorf("%w: doc.chunk.overlap 必须小于 doc.chunk.size", ErrValidation)
		}
	}
	return nil
}

// --- 生效配置解析（明文，仅供内部组件使用） ---

// effectiveObject 按作用域层级合并一个配置对象并解密敏感字段。
func (s *ConfigService) effectiveObject(ctx context.Context, category, key string, tenantID, userID string) (map[string]interface{}, error) {
	result := map[string]interface{}{}
	found := false

	lookups := []struct {
		scope   string
		scopeID *string
	}{
		{models.ScopeSystem, nil},
	}
	if tenantID != "" && scopeAllowed(category, key, models.ScopeTenant) {
		lookups = append(lookups, struct {
			scope   string
			scopeID *string
		}{models.ScopeTenant, &tenantID})
	}
	if userID != "" && scopeAllowed(category, key, models.ScopeUser) {
		lookups = append(lookups, struct {
			scope   string
			scopeID *string
		}{models.ScopeUser, &userID})
	}

	rules := definitionFor(category, key)
	for _, lk := range lookups {
		entry, err := s.repo.Get(ctx, lk.scope, lk.scopeID, category, key)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		value, err := decodeValue(entry.Value)
		if err != nil {
			continue
		}
		for k, v := range decryptObject(value, rules) {
			result[k] = v
		}
		found = true
	}

	if !found {
		return nil, fmt.Errorf("未找到配置 %s.%s", category, key)
	}
	return result, nil
}

// EmbeddingSettings resolves the effective embedding model for a tenant.
func (s *ConfigService) EmbeddingSettings(ctx context.Context, tenantID string) (*embeddings.ModelSettings, error) {
	obj, err := s.effectiveObject(ctx, "embedding", "default", tenantID, "")
	if err != nil {
		return nil, err
	}
	return &embeddings.ModelSettings{
		Provider: stringField(obj, "provider"),
		BaseURL:  stringField(obj, "base_url"),
		APIKey:   stringField(obj, "api_key"),
		Model:    stringField(obj, "model"),
	}, nil
}

// LLMSettings resolves the effective chat model for a tenant and user.
func (s *ConfigService) LLMSettings(ctx context.Context, tenantID, userID string) (*llms.ModelSettings, error) {
	obj, err := s.effectiveObject(ctx, "llm", "default", tenantID, userID)
	if err != nil {
		return nil, err
	}
	settings := &llms.ModelSettings{
		Provider: stringField(obj, "provider"),
		BaseURL:  stringField(obj, "base_url"),
		APIKey:   stringField(obj, "api_key"),
		Model:    stringField(obj, "model"),
	}
	if temp, ok := numberField(obj, "temperature"); ok {
		settings.Temperature = float32(temp)
	}
	if maxTokens, ok := numberField(obj, "max_tokens"); ok {
		settings.MaxTokens = int(maxTokens)
	}
	return settings, nil
}

// RerankSettings resolves the effective rerank model for a tenant and user.
func (s *ConfigService) RerankSettings(ctx context.Context, tenantID, userID string) (*rerankers.ModelSettings, error) {
	obj, err := s.effectiveObject(ctx, "rerank", "default", tenantID, userID)
	if err != nil {
		return nil, err
	}
	settings := &rerankers.ModelSettings{
		Provider: stringField(obj, "provider"),
		BaseURL:  stringField(obj, "base_url"),
		APIKey:   stringField(obj, "api_key"),
		Model:    stringField(obj, "model"),
	}
	if timeout, ok := numberField(obj, "timeout"); ok {
		settings.Timeout = time.Duration(timeout) * time.Second
	}
	return settings, nil
}

// RetrievalSettings resolves the effective retrieval defaults. Missing
// configuration falls back to topK=5, threshold=0.3.
func (s *ConfigService) RetrievalSettings(ctx context.Context, tenantID, userID string) (topK int, similarityThreshold float64) {
	topK, similarityThreshold = 5, 0.3
	obj, err := s.effectiveObject(ctx, "retrieval", "default", tenantID, userID)
	if err != nil {
		return topK, similarityThreshold
	}
	if v, ok := numberField(obj, "top_k"); ok {
		topK = int(v)
	}
	if v, ok := numberField(obj, "similarity_threshold"); ok {
		similarityThreshold = v
	}
	return topK, similarityThreshold
}

// UploadPolicy resolves the allowed upload types and size limit. Missing
// configuration falls back to all supported types and 50 MB.
func (s *ConfigService) UploadPolicy(ctx context.Context, tenantID string) (types []string, maxFileSizeMB float64) {
	types = []string{"txt", "md", "pdf", "word"}
	maxFileSizeMB = 50
	obj, err := s.effectiveObject(ctx, "doc", "upload", tenantID, "")
	if err != nil {
		return types, maxFileSizeMB
	}
	if list, ok := obj["upload_types"].([]interface{}); ok && len(list) > 0 {
		types = types[:0]
		for _, v := range list {
			if str, ok := v.(string); ok {
				types = append(types, str)
			}
		}
	}
	if v, ok := numberField(obj, "max_file_size_mb"); ok {
		maxFileSizeMB = v
	}
	return types, maxFileSizeMB
}

// ChunkDefaults resolves the tenant-level default chunking policy, used when
// an upload specifies no explicit settings and the user has no recent ones.
func (s *ConfigService) ChunkDefaults(ctx context.Context, tenantID string) (size, overlap int, strategy string) {
	size, overlap, strategy = 400, 100, models.SplitByLength
	obj, err := s.effectiveObject(ctx, "doc", "chunk", tenantID, "")
	if err != nil {
		return size, overlap, strategy
	}
	if v, ok := numberField(obj, "size"); ok {
		size = int(v)
	}
	if v, ok := numberField(obj, "overlap"); ok {
		overlap = int(v)
	}
	if v := stringField(obj, "strategy"); v != "" {
		strategy = v
	}
	return size, overlap, strategy
}

// --- 校验与加解密辅助 ---

func checkScope(scope string, scopeID *string) error {
	switch scope {
	case models.ScopeSystem:
		return nil
	case models.ScopeTenant, models.ScopeUser:
		if scopeID == nil || *scopeID == "" {
			return fmt.Errorf("%w: 缺少 %s 作用域的 scope_id", ErrValidation, scope)
		}
		return nil
	default:
		return fmt.Errorf("%w: scope 必须是 system/tenant/user", ErrValidation)
	}
}

func validateObject(prefix string, obj map[string]interface{}, rules map[string]FieldRule) error {
	if obj == nil {
		return fmt.Errorf("%w: %s 必须是对象", ErrValidation, prefix)
	}
	for name, rule := range rules {
		val, present := obj[name]
		if !present {
			if rule.Required {
				return fmt.Errorf("%w: %s.%s 为必填项", ErrValidation, prefix, name)
			}
			continue
		}
		if err := validateField(prefix+"."+name, val, rule); err != nil {
			return err
		}
	}
	return nil
}

func validateField(name string, val interface{}, rule FieldRule) error {
	switch rule.Type {
	case FieldString:
		str, ok := val.(string)
		if !ok {
			return fmt.Errorf("%w: %s 类型应为字符串", ErrValidation, name)
		}
		if len(rule.Allowed) > 0 && !contains(rule.Allowed, str) {
			return fmt.Errorf("%w: %s 仅支持 %v", ErrValidation, name, rule.Allowed)
		}
	case FieldNumber:
		num, ok := toFloat(val)
		if !ok {
			return fmt.Errorf("%w: %s 类型应为数字", ErrValidation, name)
		}
		if rule.Min != nil && num < *rule.Min {
			return fmt.Errorf("%w: %s 最小值为 %v", ErrValidation, name, *rule.Min)
		}
		if rule.Max != nil && num > *rule.Max {
			return fmt.Errorf("%w: %s 最大值为 %v", ErrValidation, name, *rule.Max)
		}
	case FieldStringList:
		list, ok := val.([]interface{})
		if !ok {
			return fmt.Errorf("%w: %s 类型应为字符串数组", ErrValidation, name)
		}
		for _, item := range list {
			str, ok := item.(string)
			if !ok {
				return fmt.Errorf("%w: %s 类型应为字符串数组", ErrValidation, name)
			}
			if len(rule.Allowed) > 0 && !contains(rule.Allowed, str) {
				return fmt.Errorf("%w: %s 包含不支持的值: %s", ErrValidation, name, str)
			}
		}
	}
	return nil
}

// encryptObject applies ENC encoding to sensitive string fields.
func encryptObject(obj map[string]interface{}, rules map[string]FieldRule) map[string]interface{} {
	result := make(map[string]interface{}, len(obj))
	for k, v := range obj {
		if str, ok := v.(string); ok && rules[k].Sensitive {
			result[k] = encrypt(str)
		} else {
			result[k] = v
		}
	}
	return result
}

// decryptObject reverses encryptObject, yielding plaintext values.
func decryptObject(obj map[string]interface{}, rules map[string]FieldRule) map[string]interface{} {
	result := make(map[string]interface{}, len(obj))
	for k, v := range obj {
		if str, ok := v.(string); ok && rules[k].Sensitive {
			result[k] = decrypt(str)
		} else {
			result[k] = v
		}
	}
	return result
}

// maskObject decrypts then masks sensitive fields, for returning to clients.
func maskObject(obj map[string]interface{}, rules map[string]FieldRule) map[string]interface{} {
	result := make(map[string]interface{}, len(obj))
	for k, v := range obj {
		if str, ok := v.(string); ok && rules[k].Sensitive {
			result[k] = mask(decrypt(str))
		} else {
			result[k] = v
		}
	}
	return result
}

func encrypt(text string) string {
	return encPrefix + base64.StdEncoding.EncodeToString([]byte(text))
}

func decrypt(text string) string {
	if !strings.HasPrefix(text, encPrefix) {
		return text
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(text, encPrefix))
	if err != nil {
		return text
	}
	return string(decoded)
}

// mask hides the middle of a secret, keeping at most the first and last four
// characters visible.
func mask(text string) string {
	runes := []rune(text)
	switch {
	case len(runes) == 0:
		return ""
	case len(runes) <= 2:
		return strings.Repeat("*", len(runes))
	case len(runes) <= 8:
		return string(runes[0]) + strings.Repeat("*", len(runes)-2) + string(runes[len(runes)-1])
	default:
		return string(runes[:4]) + strings.Repeat("*", len(runes)-8) + string(runes[len(runes)-4:])
	}
}

func isEmptyValue(value map[string]interface{}) bool {
	if len(value) == 0 {
		return true
	}
	for _, v := range value {
		switch t := v.(type) {
		case nil:
			continue
		case string:
			if t != "" {
				return false
			}
		case []interface{}:
			if len(t) != 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func decodeValue(raw datatypes.JSON) (map[string]interface{}, error) {
	var value map[string]interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, err
	}
	return value, nil
}

func stringField(obj map[string]interface{}, key string) string {
	if v, ok := obj[key].(string); ok {
		return v
	}
	return ""
}

func numberField(obj map[string]interface{}, key string) (float64, bool) {
	return toFloat(obj[key])
}

func toFloat(val interface{}) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func contains(list []string, target string) bool {
	for _, v := range list {
		if v == target {
			return true
		}
	}
	return false
}

// compile-time checks: ConfigService feeds model settings to the pipeline
var (
	_ embeddings.SettingsResolver = (*ConfigService)(nil)
	_ llms.SettingsResolver       = (*ConfigService)(nil)
	_ rerankers.SettingsResolver  = (*ConfigService)(nil)
)
