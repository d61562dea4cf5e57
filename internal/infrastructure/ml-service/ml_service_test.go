package ml_service

import (
	"context"
	"encoding/base64"
	"net"
	"testing"

	"github.com/DRSN-tech/fashion-search/internal/domain"
	"github.com/DRSN-tech/fashion-search/pkg/e"
	"github.com/DRSN-tech/fashion-search/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

type visionServer interface {
	EmbedImage(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ScoreImageText(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type fakeVision struct {
	embed func(image []byte, region string) (*structpb.Struct, error)
	score float64
}

func (f *fakeVision) EmbedImage(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	img, err := base64.StdEncoding.DecodeString(req.GetFields()["image"].GetStringValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "bad image")
	}
	return f.embed(img, req.GetFields()["region"].GetStringValue())
}

func (f *fakeVision) ScoreImageText(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{"score": f.score})
}

func unary(call func(visionServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
		in := &structpb.Struct{}
		if err := dec(in); err != nil {
			return nil, err
		}
		return call(srv.(visionServer), ctx, in)
	}
}

var visionDesc = grpc.ServiceDesc{
	ServiceName: "fashion.ml.v1.VisionService",
	HandlerType: (*visionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "EmbedImage", Handler: unary(visionServer.EmbedImage)},
		{MethodName: "ScoreImageText", Handler: unary(visionServer.ScoreImageText)},
	},
}

func newTestService(t *testing.T, impl *fakeVision) *MLService {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	srv.RegisterService(&visionDesc, impl)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return NewMLService(conn, 2, logger.NewNop())
}

func vectorStruct(values ...any) *structpb.Struct {
	s, _ := structpb.NewStruct(map[string]any{"vector": values})
	return s
}

func TestEmbedImage(t *testing.T) {
	var gotRegion string
	var gotImage []byte
	svc := newTestService(t, &fakeVision{embed: func(image []byte, region string) (*structpb.Struct, error) {
		gotImage, gotRegion = image, region
		return vectorStruct(0.5, -0.25, 1.0), nil
	}})

	vec, err := svc.EmbedImage(context.Background(), []byte("jpeg-bytes"), domain.RegionUpper)

	require.NoError(t, err)
	assert.Equal(t, domain.Vector{0.5, -0.25, 1.0}, vec)
	assert.Equal(t, "upper", gotRegion)
	assert.Equal(t, []byte("jpeg-bytes"), gotImage)
}

func TestEmbedImageMalformed(t *testing.T) {
	svc := newTestService(t, &fakeVision{embed: func([]byte, string) (*structpb.Struct, error) {
		return vectorStruct(0.1, "oops"), nil
	}})

	_, err := svc.EmbedImage(context.Background(), []byte("x"), domain.RegionFull)

	assert.ErrorIs(t, err, e.ErrMalformedVector)
}

func TestEmbedImageEmpty(t *testing.T) {
	svc := newTestService(t, &fakeVision{embed: func([]byte, string) (*structpb.Struct, error) {
		return &structpb.Struct{}, nil
	}})

	_, err := svc.EmbedImage(context.Background(), []byte("x"), domain.RegionFull)

	assert.ErrorIs(t, err, e.ErrEmptyModelOutput)
}

func TestEmbedImageUnavailable(t *testing.T) {
	svc := newTestService(t, &fakeVision{embed: func([]byte, string) (*structpb.Struct, error) {
		return nil, status.Error(codes.Unavailable, "gpu busy")
	}})

	_, err := svc.EmbedImage(context.Background(), []byte("x"), domain.RegionLower)

	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestScoreImageText(t *testing.T) {
	svc := newTestService(t, &fakeVision{score: 0.31})

	score, err := svc.ScoreImageText(context.Background(), []byte("x"), "오버핏 셔츠")

	require.NoError(t, err)
	assert.InDelta(t, 0.31, score, 1e-9)
}
