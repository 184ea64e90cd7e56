package repository

import (
	"context"
	"errors"
	"net"
	"os"

	"GeoMatch-App/internal/domain/model"
)

// classifyError バックエンド固有のエラーを ErrTimeout / ErrConnectionFailure に分類する
func classifyError(op string, err error) error {
	if err == nil {
		return nil
	}
	var serr *model.StorageError
	if errors.As(err, &serr) {
		return err
	}
	if isTimeout(err) {
		return model.NewStorageError(op, model.ErrTimeout, err)
	}
	return model.NewStorageError(op, model.ErrConnectionFailure, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
