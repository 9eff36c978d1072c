// Package logger provides structured logging on top of zerolog.
//
// Loggers are scoped by component and enriched with the request ID carried in
// the request context. Output can go to stdout, stderr, or a rotated file.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//	  output: "file"
//	  file: "/var/log/asrgate/asrgate.log"
//	  components:
//	    audio: "debug"
//
// # Usage
//
// Component loggers are registered once at startup with RegisterComponents
// and fetched by name:
//
//	log := logger.Get("pipeline")
//	log.Info("transcription completed", logger.Fields("strategy", "short_form"))
package logger
