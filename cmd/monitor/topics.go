package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	config "github.com/NordCoder/opsmonitor/internal/config/monitor"
	"github.com/NordCoder/opsmonitor/internal/obs"
	"github.com/NordCoder/opsmonitor/internal/repository/kafka"
)

func newKafkaInitCmd() *cobra.Command {
	var rf int
	cmd := &cobra.Command{
		Use:   "kafka-init",
		Short: "Create the alert event and check request topics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			l, err := obs.NewLogger(*cfg.AsLoggerConfig())
			if err != nil {
				return err
			}
			defer func() { _ = l.Sync() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()

			topics := []struct {
				brokers    []string
				name       string
				partitions int
			}{
				{cfg.Out.Brokers, cfg.Out.Topic, cfg.Out.Partitions},
				{cfg.In.Brokers, cfg.In.Topic, cfg.In.Partitions},
			}
			for _, t := range topics {
				err := kafka.EnsureTopic(ctx, t.brokers, kafka.TopicSpec{
					Name:              t.name,
					NumPartitions:     t.partitions,
					ReplicationFactor: rf,
					MaxWait:           10 * time.Second,
				}, l)
				if err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&rf, "replication-factor", 1, "replication factor for created topics")
	return cmd
}
