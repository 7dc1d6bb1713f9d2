package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

type planKey struct {
	intent   string
	risk     string
	fallback string
}

type stepKey struct {
	tool    string
	outcome string
}

type orchestrationCollector struct {
	mu            sync.Mutex
	plans         map[planKey]uint64
	steps         map[stepKey]uint64
	confirmations map[string]uint64
}

var orchCollector = &orchestrationCollector{
	plans:         make(map[planKey]uint64),
	steps:         make(map[stepKey]uint64),
	confirmations: make(map[string]uint64),
}

// ObservePlan records a produced plan and whether it came from the fallback path.
func ObservePlan(intent, risk string, fallback bool) {
	orchCollector.mu.Lock()
	defer orchCollector.mu.Unlock()
	key := planKey{intent: intent, risk: risk, fallback: "false"}
	if fallback {
		key.fallback = "true"
	}
	orchCollector.plans[key]++
}

// ObserveStep records a step execution outcome ("success" or "error").
func ObserveStep(tool, outcome string) {
	orchCollector.mu.Lock()
	defer orchCollector.mu.Unlock()
	orchCollector.steps[stepKey{tool: tool, outcome: outcome}]++
}

// ObserveConfirmation records a confirmation decision ("granted", "denied" or "pending").
func ObserveConfirmation(decision string) {
	orchCollector.mu.Lock()
	defer orchCollector.mu.Unlock()
	orchCollector.confirmations[decision]++
}

func (c *orchestrationCollector) render() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var builder strings.Builder
	builder.Grow(512)

	type planMetric struct {
		planKey
		value uint64
	}
	plans := make([]planMetric, 0, len(c.plans))
	for key, value := range c.plans {
		plans = append(plans, planMetric{planKey: key, value: value})
	}
	sort.Slice(plans, func(i, j int) bool {
		if plans[i].intent == plans[j].intent {
			if plans[i].risk == plans[j].risk {
				return plans[i].fallback < plans[j].fallback
			}
			return plans[i].risk < plans[j].risk
		}
		return plans[i].intent < plans[j].intent
	})
	builder.WriteString("# HELP nova_plans_total Total number of plans produced.\n")
	builder.WriteString("# TYPE nova_plans_total counter\n")
	for _, metric := range plans {
		builder.WriteString(fmt.Sprintf("nova_plans_total{intent=\"%s\",risk=\"%s\",fallback=\"%s\"} %d\n",
			escape(metric.intent), escape(metric.risk), metric.fallback, metric.value))
	}

	type stepMetric struct {
		stepKey
		value uint64
	}
	steps := make([]stepMetric, 0, len(c.steps))
	for key, value := range c.steps {
		steps = append(steps, stepMetric{stepKey: key, value: value})
	}
	sort.Slice(steps, func(i, j int) bool {
		if steps[i].tool == steps[j].tool {
			return steps[i].outcome < steps[j].outcome
		}
		return steps[i].tool < steps[j].tool
	})
	builder.WriteString("# HELP nova_steps_total Total number of step executions by outcome.\n")
	builder.WriteString("# TYPE nova_steps_total counter\n")
	for _, metric := range steps {
		builder.WriteString(fmt.Sprintf("nova_steps_total{tool=\"%s\",outcome=\"%s\"} %d\n",
			escape(metric.tool), escape(metric.outcome), metric.value))
	}

	decisions := make([]string, 0, len(c.confirmations))
	for decision := range c.confirmations {
		decisions = append(decisions, decision)
	}
	sort.Strings(decisions)
	builder.WriteString("# HELP nova_confirmations_total Total number of confirmation decisions.\n")
	builder.WriteString("# TYPE nova_confirmations_total counter\n")
	for _, decision := range decisions {
		builder.WriteString(fmt.Sprintf("nova_confirmations_total{decision=\"%s\"} %d\n",
			escape(decision), c.confirmations[decision]))
	}

	return builder.String()
}
