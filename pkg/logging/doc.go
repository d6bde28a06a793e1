// Package logging configures structured logging for mockapi.
//
// It wraps log/slog so every component logs the same way:
//
//	log := logging.New(logging.Config{
//	    Level:  logging.ParseLevel("debug"),
//	    Format: logging.ParseFormat("json"),
//	})
//	log.Info("listening", "addr", addr)
//
// Components accept a *slog.Logger through a WithLogger option and fall back
// to Nop when none is given.
package logging
