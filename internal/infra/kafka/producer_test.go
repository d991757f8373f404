package kafka

import (
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"go.uber.org/zap"

	"github.com/avelor/identity-auth/internal/infra/config"
)

func TestProducer_TopicName(t *testing.T) {
	cases := []struct {
		name      string
		prefix    string
		eventType string
		want      string
	}{
		{name: "with prefix", prefix: "idp", eventType: "session.revoked", want: "idp.session.revoked"},
		{name: "already prefixed", prefix: "idp", eventType: "idp.session.revoked", want: "idp.session.revoked"},
		{name: "no prefix", prefix: "", eventType: "session.revoked", want: "session.revoked"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := &Producer{cfg: config.KafkaSettings{TopicPrefix: tc.prefix}}
			if got := p.TopicName(tc.eventType); got != tc.want {
				t.Fatalf("TopicName(%q) = %q, want %q", tc.eventType, got, tc.want)
			}
		})
	}
}

func TestProducer_CloseWaitsForErrorDrain(t *testing.T) {
	async := mocks.NewAsyncProducer(t, nil)
	async.ExpectInputAndFail(errors.New("broker unavailable"))

	p := &Producer{
		producer: async,
		logger:   zap.NewNop(),
		cfg:      config.KafkaSettings{TopicPrefix: "idp"},
		stopped:  make(chan struct{}),
	}
	go p.handleErrors()

	p.Producer().Input() <- &sarama.ProducerMessage{
		Topic: p.TopicName("session.revoked"),
		Value: sarama.StringEncoder("{}"),
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case <-p.stopped:
	default:
		t.Fatalf("expected the error drain finished before Close returned")
	}
}
