package core

import "context"

type ingestAction struct {
	ingester FileIngester
}

func (a ingestAction) Kind() ActionKind { return ActionIngest }

func (a ingestAction) Target() string { return a.ingester.Folder() }

func (a ingestAction) Deliver(ctx context.Context, filePath string) error {
	_, err := a.ingester.Ingest(ctx, filePath)
	return err
}

type deviceAction struct {
	mailer  DeviceMailer
	address string
}

func (a deviceAction) Kind() ActionKind { return ActionDevice }

func (a deviceAction) Target() string { return a.address }

func (a deviceAction) Deliver(ctx context.Context, filePath string) error {
	return a.mailer.SendFile(ctx, filePath, a.address)
}
