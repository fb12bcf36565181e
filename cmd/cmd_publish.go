package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"stockservice/internal/app"
	"stockservice/internal/inventory"
	"stockservice/internal/platform/kafka"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/spf13/cobra"
)

var (
	publishKind       string
	publishFile       string
	publishGenerateID bool

	publishCmd = &cobra.Command{
		Use:   "publish",
		Short: "Publish newline-delimited JSON events to the topic of their kind",
		RunE:  runPublish,
	}
)

func init() {
	publishCmd.Flags().StringVar(&publishKind, "kind", "", "event kind: product, store, sale or stock_adjustment")
	publishCmd.Flags().StringVarP(&publishFile, "file", "f", "-", "input file, - for stdin")
	publishCmd.Flags().BoolVar(&publishGenerateID, "generate-id", false, "assign a random event_id to events without one")
	_ = publishCmd.MarkFlagRequired("kind")
}

func runPublish(cmd *cobra.Command, _ []string) error {
	kind, err := inventory.ParseKind(publishKind)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	in := cmd.InOrStdin()
	if publishFile != "-" {
		f, err := os.Open(publishFile)
		if err != nil {
			return fmt.Errorf("open %s: %w", publishFile, err)
		}
		defer f.Close()
		in = f
	}

	msgs, err := readEvents(in, kind, publishGenerateID)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return fmt.Errorf("no events in %s", publishFile)
	}

	topic := app.KindTopic(cfg, kind)
	producer, err := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  cfg.KafkaBrokers,
		Topic:    topic,
		ClientID: "stockservice-publish",
	}, nil)
	if err != nil {
		return err
	}
	defer producer.Close()

	ctx := context.Background()
	for i, msg := range msgs {
		if err := producer.WriteMessage(ctx, msg); err != nil {
			return fmt.Errorf("publish event %d: %w", i+1, err)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "published %d %s event(s) to %s\n", len(msgs), kind, topic)
	return nil
}

// readEvents parses one event per non-empty line and checks that it decodes
// as kind before anything is sent.
func readEvents(r io.Reader, kind inventory.Kind, generateID bool) ([]kafkago.Message, error) {
	var msgs []kafkago.Message
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		var w inventory.WireEvent
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if generateID && (w.EventID == nil || *w.EventID == "") {
			id := uuid.NewString()
			w.EventID = &id
		}
		env := inventory.Normalize(kind, w, inventory.Delivery{})
		if missing := env.MissingIdentity(); missing != "" {
			return nil, fmt.Errorf("line %d: %s event has no %s", line, kind, missing)
		}

		payload, err := json.Marshal(w)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		msgs = append(msgs, kafkago.Message{Key: []byte(env.EventID), Value: payload})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return msgs, nil
}
