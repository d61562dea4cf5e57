package grpc

import (
	"errors"

	"github.com/DRSN-tech/fashion-search/pkg/e"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var invalidArgument = []error{
	e.ErrEmptySearchRequest,
	e.ErrInvalidCategory,
	e.ErrInvalidGender,
	e.ErrInvalidRegion,
	e.ErrInvalidLimit,
	e.ErrInvalidID,
	e.ErrInvalidPrice,
	e.ErrPricePrecision,
	e.ErrFileTooLarge,
	e.ErrUnsupportedMediaType,
	e.ErrStatusBadRequest,
}

func GRPCErrorResponse(err error) error {
	for _, target := range invalidArgument {
		if errors.Is(err, target) {
			return status.Error(codes.InvalidArgument, target.Error())
		}
	}

	switch {
	case errors.Is(err, e.ErrProductNotFound):
		return status.Error(codes.NotFound, e.ErrProductNotFound.Error())
	case errors.Is(err, e.ErrQuotaExceeded):
		return status.Error(codes.ResourceExhausted, e.ErrQuotaExceeded.Error())
	case errors.Is(err, e.ErrModelUnavailable), errors.Is(err, e.ErrEmptyModelOutput):
		return status.Error(codes.Unavailable, e.ErrModelUnavailable.Error())
	default:
		return status.Error(codes.Internal, e.ErrInternalServerError.Error())
	}
}
