package plan

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// allowedTools 是规划器允许使用的全部工具标识。
// 规划产物中的任何步骤都必须落在这个集合内，否则整个计划作废。
var allowedTools = map[string]struct{}{
	"gmail.send_email":            {},
	"gmail.draft_email":           {},
	"gmail.read_unread_important": {},
	"calendar.create_event":       {},
	"calendar.upcoming_events":    {},
	"calendar.delete_event":       {},
	"sms.send_sms":                {},
	"sentiment.analyze_text":      {},
	"order.place_order":           {},
	"order.prepare_order_sync":    {},
	"linkedin.prepare_post_sync":  {},
}

// IsAllowed 判断工具标识是否在允许列表内。
func IsAllowed(tool string) bool {
	_, ok := allowedTools[tool]
	return ok
}

// AllowedTools 返回按字典序排列的允许工具列表。
func AllowedTools() []string {
	tools := make([]string, 0, len(allowedTools))
	for tool := range allowedTools {
		tools = append(tools, tool)
	}
	sort.Strings(tools)
	return tools
}

// Catalog 描述 configs/tools.yaml 中的工具目录。
// 目录只为允许列表内的工具补充展示信息，不能放宽允许或敏感策略。
type Catalog struct {
	Tools map[string]CatalogEntry `yaml:"tools"`
}

// CatalogEntry 是目录中单个工具的描述信息。
type CatalogEntry struct {
	Description string `yaml:"description"`
	Backend     string `yaml:"backend"`
}

// LoadCatalog 解析工具目录文件。路径为空时返回空目录。
func LoadCatalog(path string) (Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Catalog{Tools: map[string]CatalogEntry{}}, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("读取工具目录失败: %w", err)
	}

	var catalog Catalog
	if err := yaml.Unmarshal(content, &catalog); err != nil {
		return Catalog{}, fmt.Errorf("解析工具目录失败: %w", err)
	}
	if catalog.Tools == nil {
		catalog.Tools = map[string]CatalogEntry{}
	}
	for tool := range catalog.Tools {
		if !IsAllowed(tool) {
			return Catalog{}, fmt.Errorf("工具目录包含允许列表之外的工具: %s", tool)
		}
	}
	return catalog, nil
}

// Describe 返回工具的描述信息，未配置时返回空字符串。
func (c Catalog) Describe(tool string) string {
	if c.Tools == nil {
		return ""
	}
	return c.Tools[tool].Description
}
