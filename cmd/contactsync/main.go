package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/homemade/campmon/sync"
	"github.com/nats-io/nats.go"
)

const (
	defaultSubject           = "crm.contact.changed"
	defaultInvalidateSubject = "crm.metadata.invalidate"
	queueGroup               = "campmon-contactsync"
	messageTimeout           = 2 * sync.HTTPRequestTimeout
)

func main() {
	configDir := flag.String("config", ".", "directory containing defaults.yaml and sync.yaml")
	natsURL := flag.String("nats", nats.DefaultURL, "NATS server url")
	subject := flag.String("subject", defaultSubject, "subject contact change events are published to")
	invalidateSubject := flag.String("invalidate-subject", defaultInvalidateSubject, "subject that clears the metadata cache, optionally by key prefix")
	record := flag.String("record", "", "directory to record API requests to")
	doc := flag.Bool("doc", false, "print the field mapping documentation as CSV and exit")
	checkFields := flag.Bool("check-fields", false, "report mapped fields missing from the subscriber list and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loader := sync.NewFileConfigurationLoader(*configDir)
	engine, err := sync.Init(ctx, loader, *record)
	if err != nil {
		log.Fatalf("Failed to initialise: %v", err)
	}

	switch {
	case *doc:
		if err := printDocumentation(ctx, loader, engine); err != nil {
			log.Fatalf("Failed to generate field documentation: %v", err)
		}
		return
	case *checkFields:
		if err := printMissingFields(ctx, loader, engine); err != nil {
			log.Fatalf("Failed to check custom fields: %v", err)
		}
		return
	}

	if err := listen(ctx, *natsURL, *subject, *invalidateSubject, engine); err != nil {
		log.Fatalf("Listener stopped: %v", err)
	}
}

func printDocumentation(ctx context.Context, loader sync.ConfigurationLoader, engine sync.Engine) error {
	cfg, err := loader.LoadConfiguration(ctx)
	if err != nil {
		return err
	}
	doc, err := sync.GenerateFieldDocumentation(ctx, cfg.Sync, engine.Metadata)
	if err != nil {
		return err
	}
	csv, err := doc.FormatCSV()
	if err != nil {
		return err
	}
	fmt.Print(csv)
	return nil
}

func printMissingFields(ctx context.Context, loader sync.ConfigurationLoader, engine sync.Engine) error {
	cfg, err := loader.LoadConfiguration(ctx)
	if err != nil {
		return err
	}
	doc, err := sync.GenerateFieldDocumentation(ctx, cfg.Sync, engine.Metadata)
	if err != nil {
		return err
	}
	var names []string
	for _, row := range doc.Rows {
		names = append(names, row.FieldName)
	}
	missing, err := engine.ESP.CheckCustomFields(ctx, cfg.Sync.ListID, names)
	if err != nil {
		return err
	}
	if len(missing) == 0 {
		fmt.Println("All mapped fields exist on the subscriber list")
		return nil
	}
	for _, m := range missing {
		fmt.Printf("Missing custom field: %s\n", m)
	}
	return nil
}

func listen(ctx context.Context, url string, subject string, invalidateSubject string, engine sync.Engine) error {
	nc, err := nats.Connect(url,
		nats.Name(queueGroup),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("Warning: NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("NATS reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ErrorHandler(func(_ *nats.Conn, s *nats.Subscription, err error) {
			if s != nil {
				log.Printf("NATS error on %s: %v", s.Subject, err)
				return
			}
			log.Printf("NATS error: %v", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS %w", err)
	}
	defer nc.Drain()

	_, err = nc.QueueSubscribe(subject, queueGroup, func(msg *nats.Msg) {
		msgCtx, cancel := context.WithTimeout(ctx, messageTimeout)
		defer cancel()
		reply := "ok"
		if err := sync.HandleContactEvent(msgCtx, engine.Orchestrator, msg.Data); err != nil {
			reply = err.Error()
		}
		if msg.Reply != "" {
			if err := msg.Respond([]byte(reply)); err != nil {
				log.Printf("Warning: failed to respond on %s: %v", msg.Reply, err)
			}
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s %w", subject, err)
	}

	// every instance clears its own cache, so no queue group
	_, err = nc.Subscribe(invalidateSubject, func(msg *nats.Msg) {
		prefix := strings.TrimSpace(string(msg.Data))
		if prefix == "" {
			engine.Cache.InvalidateAll()
		} else {
			engine.Cache.Invalidate(prefix)
		}
		if msg.Reply != "" {
			_ = msg.Respond([]byte("ok"))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s %w", invalidateSubject, err)
	}

	log.Printf("Listening for contact changes on %s (queue %s), cache invalidation on %s", subject, queueGroup, invalidateSubject)
	<-ctx.Done()
	log.Printf("Shutting down")
	return nil
}
