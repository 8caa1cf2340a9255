package server

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/notetasks/internal/common"
)

const (
	JobsServiceName                         = "notetasks.v1.JobsService"
	JobsService_GetJob_FullMethodName       = "/notetasks.v1.JobsService/GetJob"
	JobsService_ListJobTasks_FullMethodName = "/notetasks.v1.JobsService/ListJobTasks"
)

// JobsServiceServer exposes jobs over gRPC. Requests and responses are
// google.protobuf.Struct values; requests carry a "job_id" string.
type JobsServiceServer interface {
	GetJob(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListJobTasks(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func RegisterJobsServiceServer(s grpc.ServiceRegistrar, srv JobsServiceServer) {
	s.RegisterService(&JobsService_ServiceDesc, srv)
}

func _JobsService_GetJob_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(JobsServiceServer).GetJob(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: JobsService_GetJob_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(JobsServiceServer).GetJob(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _JobsService_ListJobTasks_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(JobsServiceServer).ListJobTasks(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: JobsService_ListJobTasks_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(JobsServiceServer).ListJobTasks(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// JobsService_ServiceDesc is the grpc.ServiceDesc for JobsService.
var JobsService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: JobsServiceName,
	HandlerType: (*JobsServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetJob", Handler: _JobsService_GetJob_Handler},
		{MethodName: "ListJobTasks", Handler: _JobsService_ListJobTasks_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "notetasks/v1/jobs.proto",
}

// JobsServiceClient is the client API for JobsService.
type JobsServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewJobsServiceClient(cc grpc.ClientConnInterface) *JobsServiceClient {
	return &JobsServiceClient{cc: cc}
}

func (c *JobsServiceClient) GetJob(ctx context.Context, jobID string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, JobsService_GetJob_FullMethodName, jobID, opts...)
}

func (c *JobsServiceClient) ListJobTasks(ctx context.Context, jobID string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, JobsService_ListJobTasks_FullMethodName, jobID, opts...)
}

func (c *JobsServiceClient) invoke(ctx context.Context, method, jobID string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(map[string]any{"job_id": jobID})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// JobService implements JobsServiceServer over the job repository.
type JobService struct {
	jobs   JobReader
	logger *slog.Logger
}

func NewJobService(jobs JobReader, logger *slog.Logger) *JobService {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobService{jobs: jobs, logger: logger}
}

func (s *JobService) GetJob(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := s.jobID(req)
	if err != nil {
		return nil, err
	}
	job, err := s.jobs.GetJob(ctx, id)
	if err != nil {
		s.logger.Warn("grpc.get_job.failed", "job_id", id, "error", err)
		return nil, common.ToGRPCError(err)
	}
	tasks, err := s.jobs.ListTasks(ctx, id)
	if err != nil {
		s.logger.Error("grpc.get_job.tasks_failed", "job_id", id, "error", err)
		return nil, common.ToGRPCError(err)
	}
	out, err := toStruct(newJobDetailView(job, tasks))
	if err != nil {
		return nil, common.InternalErrorf("encode job: %v", err)
	}
	return out, nil
}

func (s *JobService) ListJobTasks(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := s.jobID(req)
	if err != nil {
		return nil, err
	}
	if _, err := s.jobs.GetJob(ctx, id); err != nil {
		return nil, common.ToGRPCError(err)
	}
	tasks, err := s.jobs.ListTasks(ctx, id)
	if err != nil {
		s.logger.Error("grpc.list_tasks.failed", "job_id", id, "error", err)
		return nil, common.ToGRPCError(err)
	}
	out, err := toStruct(map[string]any{"job_id": id, "tasks": newTaskViews(tasks)})
	if err != nil {
		return nil, common.InternalErrorf("encode tasks: %v", err)
	}
	return out, nil
}

func (s *JobService) jobID(req *structpb.Struct) (uuid.UUID, error) {
	raw := strings.TrimSpace(req.GetFields()["job_id"].GetStringValue())
	v := common.NewValidator().Field("job_id", raw, common.Required, common.UUID)
	if err := common.ValidateAndReturnError(v); err != nil {
		return uuid.Nil, err
	}
	return uuid.MustParse(raw), nil
}

// NewGRPCServer registers JobsService and the health service. Health starts
// NOT_SERVING; call SetServing once the extraction engine is ready.
func NewGRPCServer(svc JobsServiceServer, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	s := grpc.NewServer(opts...)
	RegisterJobsServiceServer(s, svc)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(JobsServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return s, hs
}

// SetServing flips overall and JobsService health to SERVING.
func SetServing(hs *health.Server) {
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(JobsServiceName, healthpb.HealthCheckResponse_SERVING)
}
