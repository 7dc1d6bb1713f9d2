package agent

import (
	"fmt"
	"strings"
)

// maxSentences 是语音应答的句数上限。
const maxSentences = 3

// Respond 根据最终状态生成简短应答。五个分支按严格优先级匹配：
// 拒绝确认、等待确认、执行出错、无计划、成功总结。
func Respond(state *State) string {
	if state.RequiresConfirmation && state.ConfirmationGranted != nil && !*state.ConfirmationGranted {
		return "Understood. I paused that task because it needs your confirmation."
	}

	if state.RequiresConfirmation && state.ConfirmationGranted == nil {
		return "This task includes sensitive actions. Please say yes to continue or no to cancel."
	}

	if state.Error != "" {
		return joinSentences([]string{
			"I ran into an execution issue",
			state.Error,
			"I can retry or adjust the plan if you want",
		})
	}

	if state.Plan == nil {
		return "I could not build a safe plan for that request."
	}

	return joinSentences([]string{
		fmt.Sprintf("Completed intent %s", state.Plan.Intent),
		fmt.Sprintf("Executed %d step(s)", len(state.Results)),
		"Anything else you want me to handle",
	})
}

// joinSentences 把非空片段拼成最多 maxSentences 句、以句号结尾的应答。
// 片段内部的句号会被当作句子边界重新切分。
func joinSentences(lines []string) string {
	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	text := strings.Join(parts, " ")

	sentences := make([]string, 0, maxSentences)
	for _, s := range strings.Split(text, ".") {
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			sentences = append(sentences, trimmed)
		}
	}
	if len(sentences) == 0 {
		return ""
	}
	if len(sentences) > maxSentences {
		sentences = sentences[:maxSentences]
	}
	return strings.Join(sentences, ". ") + "."
}
