package kafkax

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

var errNoBrokers = errors.New("kafka brokers not configured")

// ReadyCheck reports healthy once a broker accepts a connection and, when
// topics are given, knows every one of them.
func ReadyCheck(brokers string, topics ...string) func(context.Context) error {
	addrs := SplitBrokers(brokers)
	return func(ctx context.Context) error {
		if len(addrs) == 0 {
			return errNoBrokers
		}
		conn, err := dialAny(ctx, addrs)
		if err != nil {
			return err
		}
		defer conn.Close()
		if len(topics) == 0 {
			return nil
		}
		if _, err := conn.ReadPartitions(topics...); err != nil {
			return fmt.Errorf("kafka topics %v: %w", topics, err)
		}
		return nil
	}
}

func dialAny(ctx context.Context, addrs []string) (*kafka.Conn, error) {
	dialer := &kafka.Dialer{Timeout: 2 * time.Second}
	var errs []error
	for _, addr := range addrs {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			return conn, nil
		}
		errs = append(errs, err)
	}
	return nil, errors.Join(errs...)
}
