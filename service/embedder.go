// Package service 提供外部模型服务的客户端。
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cinekit/cinekit/trainer"
)

// EmbedderClient 是 HTTP embedding 服务的客户端，实现 trainer.Embedder。
//
// REST API 格式：
//   - 推理端点：POST {endpoint}/embed
//   - 请求体：{"model": "...", "texts": ["...", ...]}
//   - 响应：{"embeddings": [[f1, f2, ...], ...]}
//
// 使用场景：
//   - 内容模型训练时计算电影文本的稠密向量
//   - Load 探测服务可用性，失败时训练侧回退 TF-IDF
type EmbedderClient struct {
	// Endpoint 服务端点，如 "http://localhost:8090"
	Endpoint string

	// ModelName 模型标识，写入请求体并作为向量来源名
	ModelName string

	// Timeout 超时时间
	Timeout time.Duration

	// httpClient HTTP 客户端
	httpClient *http.Client
}

// NewEmbedderClient 创建 embedding 服务客户端。
func NewEmbedderClient(endpoint, modelName string, opts ...EmbedderOption) *EmbedderClient {
	client := &EmbedderClient{
		Endpoint:  endpoint,
		ModelName: modelName,
		Timeout:   30 * time.Second,
	}

	for _, opt := range opts {
		opt(client)
	}

	if client.httpClient == nil {
		client.httpClient = &http.Client{
			Timeout: client.Timeout,
		}
	}

	return client
}

// EmbedderOption 客户端配置选项
type EmbedderOption func(*EmbedderClient)

// WithEmbedderTimeout 设置超时时间
func WithEmbedderTimeout(timeout time.Duration) EmbedderOption {
	return func(c *EmbedderClient) {
		c.Timeout = timeout
		if c.httpClient != nil {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithEmbedderHTTPClient 设置自定义 HTTP 客户端
func WithEmbedderHTTPClient(httpClient *http.Client) EmbedderOption {
	return func(c *EmbedderClient) {
		c.httpClient = httpClient
	}
}

// Name 返回模型标识。
func (c *EmbedderClient) Name() string {
	return c.ModelName
}

// Load 探测服务可用性：空文本列表的 embed 调用。
// 失败即表示模型不可用，训练侧据此回退 TF-IDF。
func (c *EmbedderClient) Load(ctx context.Context) error {
	_, err := c.Embed(ctx, []string{})
	return err
}

type embedRequest struct {
	Model string   `json:"model"`
	Texts []string `json:"texts"`
}

type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// Embed 批量计算文本向量。
func (c *EmbedderClient) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	jsonData, err := json.Marshal(embedRequest{Model: c.ModelName, Texts: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := c.Endpoint + "/embed"
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("embedder request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedder error: status=%d, body=%s", resp.StatusCode, string(bodyBytes))
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d embeddings for %d texts",
			len(result.Embeddings), len(texts))
	}
	return result.Embeddings, nil
}

// 确保 EmbedderClient 实现了 trainer.Embedder 接口
var _ trainer.Embedder = (*EmbedderClient)(nil)
