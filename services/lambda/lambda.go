package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/relabs-tech/promptlib/core/app"
	"github.com/relabs-tech/promptlib/core/lambdaproxy"
)

func main() {
	service, err := app.Decode()
	if err != nil {
		panic(err)
	}
	a, err := app.New(context.Background(), service)
	if err != nil {
		panic(err)
	}
	lambda.Start(lambdaproxy.New(a.Handler()).Handle)
}
