package commspump

import "testing"

func TestTopicRoundTrip(t *testing.T) {
	topic := BuildTopic(TopicPrefix, "node1", PostfixCmd)
	if topic != "hastigNode/node1/cmd" {
		t.Fatalf("unexpected topic: %s", topic)
	}
	if !TopicHasPostfix(topic, PostfixCmd) {
		t.Fatalf("expected postfix match")
	}
	if TopicHasPostfix(topic, PostfixCfg) {
		t.Fatalf("expected no match against other postfix")
	}
}
