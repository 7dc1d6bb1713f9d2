// Package config 负责加载并校验 Nova 的启动配置，覆盖服务地址、
// 工具后端、规划模型、存储驱动与日志等模块，未填写的字段会落到
// 可直接运行的默认值上。
package config
