package main

import (
	"context"
	"log/slog"

	"google.golang.org/api/option"

	"ytplan/internal/config"
	"ytplan/internal/mail"
	"ytplan/internal/remind"
	"ytplan/internal/sheet"
	"ytplan/internal/storage"
	"ytplan/internal/youtube"
)

// openStore opens the configured store. Unless create is set a missing
// spreadsheet or file is left alone and reads as an empty table.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger, create bool) (sheet.Store, func() error, error) {
	if cfg.Store == config.StoreFile {
		var opts []storage.Option
		if !create {
			opts = append(opts, storage.WithoutCreate())
		}
		s, err := storage.NewJSONStore(ctx, cfg.StorePath, opts...)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}

	s, err := sheet.OpenGoogleSheets(ctx, sheet.GoogleConfig{
		SpreadsheetID: cfg.SpreadsheetID,
		Name:          cfg.SheetName,
		NoCreate:      !create,
		ClientOptions: []option.ClientOption{
			option.WithCredentialsFile(cfg.CredentialsFile),
			option.WithScopes(sheet.Scopes...),
		},
		RequestsPerSecond: cfg.SheetsRPS,
		Retry:             cfg.Retry(),
		Logger:            logger.With("store", "sheets"),
	})
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("spreadsheet opened", "id", s.SpreadsheetID(), "url", s.URL())
	return s, func() error { return nil }, nil
}

func newSource(ctx context.Context, cfg *config.Config, logger *slog.Logger) (youtube.PlaylistSource, error) {
	if cfg.Source == config.SourceAPI {
		return youtube.NewAPISource(ctx, youtube.APIConfig{
			APIKey: cfg.YouTubeAPIKey,
			Retry:  cfg.Retry(),
			Logger: logger.With("source", "api"),
		})
	}
	src := youtube.NewYtdlpSource()
	src.Path = cfg.YtdlpPath
	src.Timeout = cfg.YtdlpTimeout
	rc := cfg.Retry()
	src.RetryConfig = &rc
	src.Logger = logger.With("source", "ytdlp")
	return src, nil
}

func newNotifier(cfg *config.Config) remind.Notifier {
	return mail.NewSMTPNotifier(mail.Config{
		Host:       cfg.SMTP.Host,
		Port:       cfg.SMTP.Port,
		Username:   cfg.SMTP.Username,
		Password:   cfg.SMTP.Password,
		From:       cfg.SMTP.From,
		RequireTLS: cfg.SMTP.RequireTLS,
	})
}
