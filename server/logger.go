// Copyright 2026 The ClawBuds Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// LoggerConfig controls where and how structured logs are written.
type LoggerConfig struct {
	Level    string // debug|info|warn|error
	File     string // optional rotating log file path
	Stdout   bool   // also write to stdout when File is set
	MaxSize  int    // megabytes, for rotation
	MaxAge   int    // days
	MaxFiles int
}

// NewLogger builds the process logger. When File is empty, logging
// goes to stdout only; otherwise it goes to a rotating file, and when
// Stdout is also set a console core and the file core are combined
// into one zapcore.Tee.
func NewLogger(cfg LoggerConfig) *zap.Logger {
	level := parseLevel(cfg.Level)
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	consoleCore := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(os.Stdout), level)

	if cfg.File == "" {
		return zap.New(consoleCore, zap.AddCaller())
	}

	fileSink := &lumberjack.Logger{
		Filename: cfg.File,
		MaxSize:  firstNonZero(cfg.MaxSize, 100),
		MaxAge:   firstNonZero(cfg.MaxAge, 28),
		MaxBackups: firstNonZero(cfg.MaxFiles, 10),
	}
	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(fileSink), level)

	if cfg.Stdout {
		return zap.New(zapcore.NewTee(consoleCore, fileCore), zap.AddCaller())
	}
	return zap.New(fileCore, zap.AddCaller())
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func firstNonZero(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}
