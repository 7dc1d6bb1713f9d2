// Package agent contains the core orchestration loop that turns
// natural-language input into a bounded plan of tool invocations, gates
// sensitive plans behind user confirmation, executes approved steps against
// the external tool backend, and produces the final spoken response.
package agent
