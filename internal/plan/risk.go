package plan

// riskyTools 是需要用户确认的敏感工具集合，策略固定在代码中，
// 外部目录文件无法扩大或缩小这个集合。
var riskyTools = map[string]struct{}{
	"gmail.send_email":           {},
	"gmail.draft_email":          {},
	"sms.send_sms":               {},
	"order.place_order":          {},
	"order.prepare_order_sync":   {},
	"linkedin.prepare_post_sync": {},
}

// IsRisky 判断单个步骤是否命中敏感工具。纯函数，无副作用。
func IsRisky(step Step) bool {
	_, ok := riskyTools[step.Tool]
	return ok
}

// RiskyTools 返回敏感工具集合的快照，仅用于展示和测试。
func RiskyTools() []string {
	tools := make([]string, 0, len(riskyTools))
	for tool := range riskyTools {
		tools = append(tools, tool)
	}
	return tools
}
