package observability

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys
const (
	attrGroup   = "group"
	attrLevel   = "level"
	attrStatus  = "status"
	attrConfig  = "config"
	attrOutcome = "outcome"
)

func groupAttr(group string) attribute.KeyValue {
	if group == "" {
		group = "adhoc"
	}
	return attribute.String(attrGroup, group)
}

func levelAttr(level string) attribute.KeyValue {
	return attribute.String(attrLevel, level)
}

func statusAttr(status string) attribute.KeyValue {
	return attribute.String(attrStatus, status)
}

func configAttr(config string) attribute.KeyValue {
	return attribute.String(attrConfig, config)
}

func outcomeAttr(outcome string) attribute.KeyValue {
	return attribute.String(attrOutcome, outcome)
}
