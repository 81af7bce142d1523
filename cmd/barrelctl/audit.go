package main

import (
	"errors"
	"fmt"

	"barrel-backend/internal/archive"
	"barrel-backend/internal/services"
	"barrel-backend/internal/timeutil"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var archiveDate string

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit log maintenance",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Walk the hash chain and report the first broken entry",
	RunE: run(func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		engine, err := openEngine(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer engine.Store.Close()

		res, err := services.NewAuditService(engine).Verify(cmd.Context())
		if err != nil {
			return err
		}
		fmtOK("%d entries verified", res.Entries)
		fmt.Printf("  last seq:  %d\n", res.LastSeq)
		fmt.Printf("  last hash: %s\n", color.CyanString(res.LastHash))
		return nil
	}),
}

var auditArchiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Export one day of the audit log to object storage",
	RunE: run(func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Archive.Bucket == "" {
			return errors.New("archive.bucket is not configured")
		}

		day := timeutil.Now().AddDate(0, 0, -1)
		if archiveDate != "" {
			if day, err = timeutil.ParseDate(archiveDate); err != nil {
				return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
			}
		}

		engine, err := openEngine(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer engine.Store.Close()

		client, err := archive.NewS3Client(cmd.Context(), archive.Options{
			Endpoint:  cfg.Archive.Endpoint,
			Region:    cfg.Archive.Region,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
		})
		if err != nil {
			return err
		}
		a := archive.New(services.NewAuditService(engine), client, cfg.Archive.Bucket, cfg.Archive.Prefix, log)
		res, err := a.ArchiveDay(cmd.Context(), day)
		if err != nil {
			return err
		}
		fmtOK("wrote %d entries (%d bytes) to %s", res.Entries, res.Bytes, color.CyanString(res.Key))
		return nil
	}),
}

func init() {
	auditArchiveCmd.Flags().StringVar(&archiveDate, "date", "", "plant-local day to export, YYYY-MM-DD (default yesterday)")
	auditCmd.AddCommand(auditVerifyCmd, auditArchiveCmd)
	rootCmd.AddCommand(auditCmd)
}
