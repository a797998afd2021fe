// Package es 提供了与 Elasticsearch 交互的客户端功能。
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"tabletalk-go/internal/config"
	"tabletalk-go/internal/model"
	"tabletalk-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// Client 封装 Elasticsearch 连接与菜品索引名。
type Client struct {
	es        *elasticsearch.Client
	indexName string
}

// NewClient 初始化 Elasticsearch 客户端并确保菜品索引存在。
func NewClient(esCfg config.ElasticsearchConfig) (*Client, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{esCfg.Addresses},
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	esClient, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	c := &Client{es: esClient, indexName: esCfg.IndexName}
	if err := c.createIndexIfNotExists(); err != nil {
		return nil, err
	}
	return c, nil
}

// createIndexIfNotExists 检查菜品索引是否存在，如果不存在则创建它
func (c *Client) createIndexIfNotExists() error {
	res, err := c.es.Indices.Exists([]string{c.indexName})
	if err != nil {
		log.Errorf("检查索引是否存在时出错: %v", err)
		return err
	}
	// 如果 res.StatusCode 是 200，说明索引已存在
	if !res.IsError() && res.StatusCode == http.StatusOK {
		log.Infof("索引 '%s' 已存在", c.indexName)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		log.Errorf("检查索引 '%s' 是否存在时收到意外的状态码: %d", c.indexName, res.StatusCode)
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}

	mapping := `{
		"mappings": {
			"properties": {
				"item_id": { "type": "keyword" },
				"restaurant_id": { "type": "keyword" },
				"restaurant_slug": { "type": "keyword" },
				"name": { "type": "text" },
				"description": { "type": "text" },
				"category_name": { "type": "text" },
				"price": { "type": "double" },
				"tags": { "type": "keyword" },
				"allergens": { "type": "keyword" },
				"is_available": { "type": "boolean" }
			}
		}
	}`

	res, err = c.es.Indices.Create(
		c.indexName,
		c.es.Indices.Create.WithBody(strings.NewReader(mapping)),
	)

	if err != nil {
		log.Errorf("创建索引 '%s' 失败: %v", c.indexName, err)
		return err
	}
	if res.IsError() {
		log.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", c.indexName, res.String())
		return errors.New("创建索引时 Elasticsearch 返回错误")
	}

	log.Infof("索引 '%s' 创建成功", c.indexName)
	return nil
}

// IndexMenuItem 将单个菜品文档索引到 Elasticsearch，文档 ID 即菜品 ID。
func (c *Client) IndexMenuItem(ctx context.Context, doc model.MenuItemDoc) error {
	docBytes, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      c.indexName,
		DocumentID: doc.ItemID,
		Body:       bytes.NewReader(docBytes),
		Refresh:    "true",
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("索引菜品文档到 Elasticsearch 出错: %s", res.String())
		return errors.New("failed to index menu item")
	}

	return nil
}

// DeleteMenuItem 从索引中删除一个菜品文档。
func (c *Client) DeleteMenuItem(ctx context.Context, itemID string) error {
	req := esapi.DeleteRequest{
		Index:      c.indexName,
		DocumentID: itemID,
	}
	res, err := req.Do(ctx, c.es)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	// 文档不存在时按成功处理
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		log.Errorf("删除菜品文档出错: %s", res.String())
		return errors.New("failed to delete menu item")
	}
	return nil
}

// SearchMenuItems 在指定餐厅范围内对菜名、描述与标签做 multi_match 检索。
func (c *Client) SearchMenuItems(ctx context.Context, restaurantSlug, query string, size int) ([]model.MenuItemDoc, error) {
	searchBody := map[string]interface{}{
		"size": size,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": map[string]interface{}{
					"multi_match": map[string]interface{}{
						"query":  query,
						"fields": []string{"name^3", "description", "category_name", "tags^2"},
					},
				},
				"filter": []interface{}{
					map[string]interface{}{"term": map[string]interface{}{"restaurant_slug": restaurantSlug}},
					map[string]interface{}{"term": map[string]interface{}{"is_available": true}},
				},
			},
		},
	}

	bodyBytes, err := json.Marshal(searchBody)
	if err != nil {
		return nil, err
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.indexName),
		c.es.Search.WithBody(bytes.NewReader(bodyBytes)),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch 检索返回错误: %s", res.String())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source model.MenuItemDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("解析检索响应失败: %w", err)
	}

	docs := make([]model.MenuItemDoc, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		docs = append(docs, h.Source)
	}
	return docs, nil
}
