package milvus

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/choudian/document-QA-system/internal/config"
	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

var (
	instance *MilvusClient
	once     sync.Once
	initErr  error
)

// MilvusClient 包含了 Milvus 客户端实例和相关配置。
type MilvusClient struct {
	Client client.Client        // Milvus 客户端实例。
	Config *config.MilvusConfig // Milvus 配置。

	mu      sync.Mutex
	ensured map[string]bool // 已确认存在并加载的集合
}

// GetClient 使用单例模式创建并返回一个 Milvus 客户端实例。
func GetClient(ctx context.Context, cfg *config.MilvusConfig) (*MilvusClient, error) {
	once.Do(func() {
		// 使用配置中的地址创建 Milvus 客户端。
		c, err := client.NewClient(ctx, client.Config{Address: cfg.Address})
		if err != nil {
			initErr = fmt.Errorf("无法连接到 Milvus: %w", err)
			return
		}
		log.Println("✅ 成功连接到 Milvus!")
		instance = &MilvusClient{Client: c, Config: cfg, ensured: make(map[string]bool)}
	})
	return instance, initErr
}

// Close 安全地关闭与 Milvus 的连接。
func (c *MilvusClient) Close() {
	if c.Client != nil {
		c.Client.Close()
		log.Println("ℹ️ 已安全关闭 Milvus 连接。")
	}
}

// HealthCheck 检查 Milvus 连接的健康状况。
func (c *MilvusClient) HealthCheck(ctx context.Context) error {
	if c.Client == nil {
		return fmt.Errorf("Milvus client is nil")
	}
	_, err := c.Client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("Milvus health check failed: %w", err)
	}
	return nil
}

// 文档集合的字段名。所有按 (tenant, user, folder) 命名的集合共享同一 schema。
const (
	FieldID         = "id"
	FieldEmbedding  = "embedding"
	FieldContent    = "content"
	FieldDocumentID = "document_id"
	FieldChunkIndex = "chunk_index"
	FieldTenantID   = "tenant_id"
	FieldUserID     = "user_id"
	FieldFolderID   = "folder_id"
)

// EnsureCollection 确保指定名称的文档集合存在、建有索引并已加载。
// 同一个集合只会检查一次，之后的调用直接返回。
func (c *MilvusClient) EnsureCollection(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ensured[name] {
		return nil
	}

	has, err := c.Client.HasCollection(ctx, name)
	if err != nil {
		return fmt.Errorf("检查集合 '%s' 失败: %w", name, err)
	}

	if !has {
		schema := entity.NewSchema().WithName(name).
			WithField(entity.NewField().WithName(FieldID).WithDataType(entity.FieldTypeVarChar).WithMaxLength(36).WithIsPrimaryKey(true)).
			WithField(entity.NewField().WithName(FieldEmbedding).WithDataType(entity.FieldTypeFloatVector).WithDim(int64(c.Config.VectorDim))).
			WithField(entity.NewField().WithName(FieldContent).WithDataType(entity.FieldTypeVarChar).WithMaxLength(65535)).
			WithField(entity.NewField().WithName(FieldDocumentID).WithDataType(entity.FieldTypeVarChar).WithMaxLength(36)).
			WithField(entity.NewField().WithName(FieldChunkIndex).WithDataType(entity.FieldTypeInt64)).
			WithField(entity.NewField().WithName(FieldTenantID).WithDataType(entity.FieldTypeVarChar).WithMaxLength(36)).
			WithField(entity.NewField().WithName(FieldUserID).WithDataType(entity.FieldTypeVarChar).WithMaxLength(36)).
			WithField(entity.NewField().WithName(FieldFolderID).WithDataType(entity.FieldTypeVarChar).WithMaxLength(36))

		if err := c.Client.CreateCollection(ctx, schema, 2); err != nil {
			return fmt.Errorf("创建集合 '%s' 失败: %w", name, err)
		}

		// 为向量字段创建 IVF_FLAT / L2 索引。
		idx, err := entity.NewIndexIvfFlat(entity.L2, c.Config.IndexNList)
		if err != nil {
			return fmt.Errorf("构建索引参数失败: %w", err)
		}
		if err := c.Client.CreateIndex(ctx, name, FieldEmbedding, idx, false); err != nil {
			return fmt.Errorf("为集合 '%s' 创建索引失败: %w", name, err)
		}
	}

	// 搜索前集合必须处于加载状态。
	if err := c.Client.LoadCollection(ctx, name, false); err != nil {
		return fmt.Errorf("加载集合 '%s' 失败: %w", name, err)
	}

	c.ensured[name] = true
	return nil
}
