package gateway

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Logger provides structured logging for gateway connection events.
type Logger struct {
	logger *zap.Logger
}

func NewLogger() *Logger {
	return &Logger{
		logger: zap.L().With(zap.String("component", "gateway")),
	}
}

func (l *Logger) Info(event string, userID primitive.ObjectID, clientID string, fields ...zap.Field) {
	allFields := append([]zap.Field{
		zap.String("event", event),
		zap.String("user_id", userID.Hex()),
		zap.String("client_id", clientID),
	}, fields...)
	l.logger.Info("gateway_event", allFields...)
}

func (l *Logger) Warn(event string, userID primitive.ObjectID, clientID string, fields ...zap.Field) {
	allFields := append([]zap.Field{
		zap.String("event", event),
		zap.String("user_id", userID.Hex()),
		zap.String("client_id", clientID),
	}, fields...)
	l.logger.Warn("gateway_warning", allFields...)
}

func (l *Logger) Error(event string, userID primitive.ObjectID, clientID string, err error, fields ...zap.Field) {
	allFields := append([]zap.Field{
		zap.String("event", event),
		zap.String("user_id", userID.Hex()),
		zap.String("client_id", clientID),
		zap.Error(err),
	}, fields...)
	l.logger.Error("gateway_error", allFields...)
}
