package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/psds-microservice/portal-service/internal/database"
	"github.com/psds-microservice/portal-service/internal/kafka"
	"github.com/psds-microservice/portal-service/internal/searchindex"
	"github.com/psds-microservice/portal-service/internal/service"
	"github.com/psds-microservice/portal-service/internal/store/gormstore"
	"github.com/spf13/cobra"
)

var reindexSearchCmd = &cobra.Command{
	Use:   "reindex-search",
	Short: "Reindex all support tickets into search. Prefers Kafka; falls back to HTTP if SEARCH_SERVICE_URL set.",
	RunE:  runReindexSearch,
}

func init() {
	rootCmd.AddCommand(reindexSearchCmd)
}

func runReindexSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	conn, err := database.Open(cfg.DSN())
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer func() {
		if err := database.Close(conn); err != nil {
			slog.Warn("reindex-search: close db", "error", err)
		}
	}()

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
	defer cancel()

	tickets, err := gormstore.New(conn).ListAllTickets(ctx)
	if err != nil {
		return fmt.Errorf("list tickets: %w", err)
	}
	slog.Info("reindex-search: tickets loaded", "count", len(tickets))

	progress := func(i int, via string) {
		if (i+1)%50 == 0 || i == len(tickets)-1 {
			slog.Info("reindex-search: progress", "via", via, "done", i+1, "total", len(tickets))
		}
	}

	// Prefer Kafka, then HTTP
	if producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicPortal); producer.Enabled() {
		defer producer.Close()
		failed := 0
		for i := range tickets {
			if err := producer.Publish(ctx, "ticket.updated", service.TicketPayload(&tickets[i])); err != nil {
				failed++
				slog.Warn("reindex-search: publish failed", "ticket_id", tickets[i].ID, "error", err)
			}
			progress(i, "kafka")
		}
		slog.Info("reindex-search: done", "via", "kafka", "sent", len(tickets)-failed, "failed", failed)
		return nil
	}
	if client := searchindex.NewClient(cfg.SearchServiceURL); client.Enabled() {
		failed := 0
		for i := range tickets {
			if err := client.IndexTicket(ctx, &tickets[i]); err != nil {
				failed++
				slog.Warn("reindex-search: index failed", "ticket_id", tickets[i].ID, "error", err)
			}
			progress(i, "http")
		}
		slog.Info("reindex-search: done", "via", "http", "indexed", len(tickets)-failed, "failed", failed)
		return nil
	}
	slog.Warn("reindex-search: neither KAFKA_BROKERS nor SEARCH_SERVICE_URL set, nothing reindexed", "count", len(tickets))
	return nil
}
