package api

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"os"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"
)

// jsonCodec lets gRPC carry JSON payloads instead of protobuf, so the
// admin control plane can reuse AdminMessage without a codegen step
// (teacher grpc_service.go's jsonCodec, unchanged in shape).
type jsonCodec struct{}

func (jsonCodec) Name() string                       { return "json" }
func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// ControlServer is the admin control plane's bidirectional stream —
// the teacher's Electron-IPC control channel, repurposed here to carry
// snapshot-invalidation and cache-stats traffic (spec §3's "invalidated
// by an external signal, out of scope here", given a concrete home).
type ControlServer interface {
	Stream(Control_StreamServer) error
}

type UnimplementedControlServer struct{}

func (UnimplementedControlServer) Stream(Control_StreamServer) error {
	return status.Errorf(codes.Unimplemented, "method Stream not implemented")
}

type Control_StreamServer interface {
	Send(*AdminMessage) error
	Recv() (*AdminMessage, error)
	grpc.ServerStream
}

type controlStreamServer struct {
	grpc.ServerStream
}

func (x *controlStreamServer) Send(m *AdminMessage) error {
	return x.ServerStream.SendMsg(m)
}

func (x *controlStreamServer) Recv() (*AdminMessage, error) {
	m := new(AdminMessage)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func _Control_Stream_Handler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(ControlServer).Stream(&controlStreamServer{stream})
}

var _Control_serviceDesc = grpc.ServiceDesc{
	ServiceName: "dentalgw.Control",
	HandlerType: (*ControlServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Stream",
			Handler:       _Control_Stream_Handler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "internal/api/control.proto",
}

func RegisterControlServer(s *grpc.Server, srv ControlServer) {
	s.RegisterService(&_Control_serviceDesc, srv)
}

// Stream implements ControlServer, answering invalidate_snapshot and
// get_stats requests against the lexicon loader.
func (s *Server) Stream(stream Control_StreamServer) error {
	for {
		msg, err := stream.Recv()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if msg == nil {
			continue
		}
		switch msg.Type {
		case "invalidate_snapshot":
			s.lexicon.Invalidate(msg.UserID)
			if err := stream.Send(&AdminMessage{Type: "invalidated", UserID: msg.UserID}); err != nil {
				return err
			}
		case "get_stats":
			stats := s.lexicon.Stats()
			if err := stream.Send(&AdminMessage{Type: "stats", Hits: stats.Hits, Misses: stats.Misses}); err != nil {
				return err
			}
		default:
			if err := stream.Send(&AdminMessage{Type: "error", Error: "unknown admin message type"}); err != nil {
				return err
			}
		}
	}
}

func (s *Server) startGRPCServer() {
	addr := s.cfg.GRPCAddr
	lis, err := listenGRPC(addr)
	if err != nil {
		s.log.With("addr", addr, "error", err).Error("gRPC listener failed")
		return
	}

	server := grpc.NewServer(
		grpc.Creds(insecure.NewCredentials()),
		grpc.ForceServerCodec(jsonCodec{}),
	)
	RegisterControlServer(server, s)

	s.mu.Lock()
	s.grpcServer = server
	s.mu.Unlock()

	s.log.With("addr", addr).Info("grpc listening")
	if err := server.Serve(lis); err != nil {
		s.log.With("error", err).Warn("grpc server stopped")
	}
}

// StopGRPC gracefully stops the admin control plane, if it was started.
func (s *Server) StopGRPC() {
	s.mu.Lock()
	server := s.grpcServer
	s.mu.Unlock()
	if server != nil {
		server.GracefulStop()
	}
}

func listenGRPC(addr string) (net.Listener, error) {
	switch {
	case strings.HasPrefix(addr, "unix:"):
		socketPath := strings.TrimPrefix(addr, "unix:")
		if err := removeIfExists(socketPath); err != nil {
			return nil, err
		}
		return net.Listen("unix", socketPath)
	case strings.HasPrefix(addr, "npipe:"):
		pipePath := strings.TrimPrefix(addr, "npipe:")
		return listenPipe(pipePath)
	default:
		return net.Listen("tcp", addr)
	}
}

func removeIfExists(path string) error {
	if path == "" {
		return errors.New("empty socket path")
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
