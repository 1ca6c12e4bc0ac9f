// Command entitlement-sim publishes a billing subscription event so a local
// booking-service flips a professional between the free and pro tiers.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/agendly/agendly/libs/config"
	"github.com/agendly/agendly/libs/kafkax"
)

func main() {
	var (
		brokers      = flag.String("brokers", config.String("KAFKA_BROKERS", "localhost:9092"), "comma separated kafka brokers")
		action       = flag.String("action", "activate", "activate or cancel")
		professional = flag.String("professional-id", config.String("PROFESSIONAL_ID", ""), "professional id")
		tier         = flag.String("tier", "pro", "tier granted on activate")
	)
	flag.Parse()

	if strings.TrimSpace(*professional) == "" {
		fatal("PROFESSIONAL_ID is required")
	}
	var eventType string
	switch *action {
	case "activate":
		eventType = "billing.subscription.activated.v1"
	case "cancel":
		eventType = "billing.subscription.canceled.v1"
	default:
		fatal("action must be activate or cancel")
	}
	addrs := kafkax.SplitBrokers(*brokers)
	if len(addrs) == 0 {
		fatal("KAFKA_BROKERS is required")
	}

	payload, err := json.Marshal(map[string]string{
		"professional_id": *professional,
		"tier":            *tier,
	})
	if err != nil {
		fatal(err.Error())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	w := &kafka.Writer{
		Addr:                   kafka.TCP(addrs...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	defer w.Close()

	eventID := uuid.NewString()
	msg := kafkax.NewMessage(ctx, kafkax.EventMeta{EventID: eventID, EventType: eventType}, *professional, payload)
	if err := w.WriteMessages(ctx, msg); err != nil {
		fatal(err.Error())
	}
	fmt.Printf("published %s event_id=%s\n", eventType, eventID)
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
