// Package api 暴露助手的 REST 接口：提交输入、确认敏感操作、
// 查询历史与服务状态。
package api
