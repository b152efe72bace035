//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package cos

import (
	"context"
	"io"

	cos "github.com/tencentyun/cos-go-sdk-v5"
)

// client is the subset of the COS object API the store uses.
type client interface {
	PutObject(ctx context.Context, name string, content io.Reader) error
	GetObject(ctx context.Context, name string) (io.ReadCloser, error)
	HeadObject(ctx context.Context, name string) error
	DeleteObject(ctx context.Context, name string) error
}

type cosClient struct {
	*cos.Client
}

func newCosClient(c *cos.Client) client {
	return &cosClient{Client: c}
}

func (c *cosClient) PutObject(ctx context.Context, name string, content io.Reader) error {
	opt := &cos.ObjectPutOptions{
		ObjectPutHeaderOptions: &cos.ObjectPutHeaderOptions{
			ContentType: contentType,
		},
	}
	_, err := c.Client.Object.Put(ctx, name, content, opt)
	return err
}

func (c *cosClient) GetObject(ctx context.Context, name string) (io.ReadCloser, error) {
	resp, err := c.Client.Object.Get(ctx, name, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *cosClient) HeadObject(ctx context.Context, name string) error {
	_, err := c.Client.Object.Head(ctx, name, nil)
	return err
}

func (c *cosClient) DeleteObject(ctx context.Context, name string) error {
	_, err := c.Client.Object.Delete(ctx, name)
	return err
}
