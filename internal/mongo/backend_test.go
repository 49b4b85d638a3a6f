package mongo

import (
	"context"
	"errors"
	"testing"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/ordering/internal/tenant"
	"go.mongodb.org/mongo-driver/bson"
)

func TestNewBackend(t *testing.T) {
	tests := []struct {
		name   string
		logger apt.Logger
	}{
		{name: "withLogger", logger: apt.NewNoopLogger()},
		{name: "withNilLogger", logger: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBackend(apt.NewConfig(), tt.logger)
			if b.logger == nil {
				t.Error("logger should never be nil")
			}
			if b.GetDatabase() != nil {
				t.Error("database should be nil before Start")
			}
		})
	}
}

func TestCollectionBeforeStart(t *testing.T) {
	c := NewBackend(apt.NewConfig(), nil).Collection("carts")

	_, err := c.FindOne(context.Background(), bson.M{})
	if !errors.Is(err, ErrNotStarted) {
		t.Errorf("err = %v, want ErrNotStarted", err)
	}
}

func TestStopWithoutStart(t *testing.T) {
	if err := NewBackend(apt.NewConfig(), nil).Stop(context.Background()); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestSetModifier(t *testing.T) {
	got := setModifier(tenant.Set{Fields: bson.M{"status": "checked_out"}})
	set, ok := got["$set"].(bson.M)
	if !ok || set["status"] != "checked_out" {
		t.Errorf("setModifier() = %v", got)
	}
}

func TestReplacePipelineKeepsIdentity(t *testing.T) {
	got := replacePipeline(tenant.Replace{Doc: bson.M{"name": "$5 special"}})
	if len(got) != 1 || len(got[0]) != 1 || got[0][0].Key != "$replaceWith" {
		t.Fatalf("replacePipeline() = %v", got)
	}

	merge, ok := got[0][0].Value.(bson.M)["$mergeObjects"].(bson.A)
	if !ok || len(merge) != 2 {
		t.Fatalf("$mergeObjects = %v", got[0][0].Value)
	}
	body, _ := merge[0].(bson.M)["$literal"].(bson.M)
	if body["name"] != "$5 special" {
		t.Errorf("body not wrapped in $literal: %v", merge[0])
	}
	kept, _ := merge[1].(bson.M)
	if kept["_id"] != "$_id" || kept["created_at"] != "$created_at" {
		t.Errorf("stored fields not kept: %v", kept)
	}
}

func TestFindOptions(t *testing.T) {
	fo := findOptions(tenant.FindOptions{
		Sort:  []tenant.Sort{{Field: "enqueued_at"}, {Field: "retry_count", Desc: true}},
		Limit: 5,
	})

	sort, ok := fo.Sort.(bson.D)
	if !ok || len(sort) != 2 {
		t.Fatalf("sort = %v", fo.Sort)
	}
	if sort[0].Key != "enqueued_at" || sort[0].Value != 1 {
		t.Errorf("sort[0] = %v", sort[0])
	}
	if sort[1].Key != "retry_count" || sort[1].Value != -1 {
		t.Errorf("sort[1] = %v", sort[1])
	}
	if fo.Limit == nil || *fo.Limit != 5 {
		t.Errorf("limit = %v, want 5", fo.Limit)
	}
}

func TestFindOptionsEmpty(t *testing.T) {
	fo := findOptions(tenant.FindOptions{})
	if fo.Sort != nil || fo.Limit != nil {
		t.Errorf("expected no sort or limit, got %v %v", fo.Sort, fo.Limit)
	}
}
