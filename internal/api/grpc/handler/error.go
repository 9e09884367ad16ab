package handler

import (
	"google.golang.org/grpc/status"

	"github.com/dtroode/gophchat-server/internal/apierror"
)

func handleError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	apiErr := apierror.From(err)
	return status.Error(apiErr.GRPCCode, apiErr.Message)
}
