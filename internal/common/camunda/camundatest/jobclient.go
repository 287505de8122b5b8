// Package camundatest provides an in-memory worker.JobClient that records the
// commands a job handler sends.
package camundatest

import (
	"context"
	"sync"

	"github.com/camunda/zeebe/clients/go/v8/pkg/commands"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"google.golang.org/grpc"
)

// JobClient records complete, fail and throw-error requests.
type JobClient struct {
	mu        sync.Mutex
	completed []*pb.CompleteJobRequest
	failed    []*pb.FailJobRequest
	thrown    []*pb.ThrowErrorRequest
	gateway   *gateway
}

func NewJobClient() *JobClient {
	c := &JobClient{}
	c.gateway = &gateway{client: c}
	return c
}

func neverRetry(context.Context, error) bool { return false }

func (c *JobClient) NewCompleteJobCommand() commands.CompleteJobCommandStep1 {
	return commands.NewCompleteJobCommand(c.gateway, neverRetry)
}

func (c *JobClient) NewFailJobCommand() commands.FailJobCommandStep1 {
	return commands.NewFailJobCommand(c.gateway, neverRetry)
}

func (c *JobClient) NewThrowErrorCommand() commands.ThrowErrorCommandStep1 {
	return commands.NewThrowErrorCommand(c.gateway, neverRetry)
}

// Completed returns the last complete request, or nil.
func (c *JobClient) Completed() *pb.CompleteJobRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.completed) == 0 {
		return nil
	}
	return c.completed[len(c.completed)-1]
}

// Failed returns the last fail request, or nil.
func (c *JobClient) Failed() *pb.FailJobRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.failed) == 0 {
		return nil
	}
	return c.failed[len(c.failed)-1]
}

// Thrown returns the last throw-error request, or nil.
func (c *JobClient) Thrown() *pb.ThrowErrorRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.thrown) == 0 {
		return nil
	}
	return c.thrown[len(c.thrown)-1]
}

// Job builds an activated job carrying variables.
func Job(taskType, variables string, retries int32) entities.Job {
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                2251799813685249,
		Type:               taskType,
		Retries:            retries,
		ProcessInstanceKey: 2251799813685200,
		Variables:          variables,
	}}
}

type gateway struct {
	pb.GatewayClient
	client *JobClient
}

func (g *gateway) CompleteJob(_ context.Context, in *pb.CompleteJobRequest, _ ...grpc.CallOption) (*pb.CompleteJobResponse, error) {
	g.client.mu.Lock()
	defer g.client.mu.Unlock()
	g.client.completed = append(g.client.completed, in)
	return &pb.CompleteJobResponse{}, nil
}

func (g *gateway) FailJob(_ context.Context, in *pb.FailJobRequest, _ ...grpc.CallOption) (*pb.FailJobResponse, error) {
	g.client.mu.Lock()
	defer g.client.mu.Unlock()
	g.client.failed = append(g.client.failed, in)
	return &pb.FailJobResponse{}, nil
}

func (g *gateway) ThrowError(_ context.Context, in *pb.ThrowErrorRequest, _ ...grpc.CallOption) (*pb.ThrowErrorResponse, error) {
	g.client.mu.Lock()
	defer g.client.mu.Unlock()
	g.client.thrown = append(g.client.thrown, in)
	return &pb.ThrowErrorResponse{}, nil
}
