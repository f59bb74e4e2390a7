package commspump

import "strings"

const TopicPrefix = "hastigNode"

const (
	PostfixCmd    = "cmd"
	PostfixCfg    = "cfg"
	PostfixData   = "data"
	PostfixStatus = "status"
)

// BuildTopic composes "<prefix>/<nodeId>/<postfix>".
func BuildTopic(prefix, nodeID, postfix string) string {
	return prefix + "/" + nodeID + "/" + postfix
}

// TopicHasPostfix reports whether topic ends in "/postfix".
func TopicHasPostfix(topic, postfix string) bool {
	return strings.HasSuffix(topic, "/"+postfix)
}
