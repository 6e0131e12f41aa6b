package mock

import (
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/m-mizutani/iocfeed/pkg/adaptor"
)

// SecretsManagerClient returns SecretString by SecretId
type SecretsManagerClient struct {
	Region  string
	Secrets map[string]string
	Inputs  []*secretsmanager.GetSecretValueInput
}

func (x *SecretsManagerClient) GetSecretValue(input *secretsmanager.GetSecretValueInput) (*secretsmanager.GetSecretValueOutput, error) {
	x.Inputs = append(x.Inputs, input)

	secret, ok := x.Secrets[aws.StringValue(input.SecretId)]
	if !ok {
		return nil, awserr.New(secretsmanager.ErrCodeResourceNotFoundException, "Secrets Manager can't find the specified secret.", nil)
	}
	return &secretsmanager.GetSecretValueOutput{
		ARN:          input.SecretId,
		SecretString: aws.String(secret),
	}, nil
}

// NewSecretsManagerMock returns factory and mock.SecretsManagerClient that the factory returns
func NewSecretsManagerMock() (adaptor.SecretsManagerClientFactory, *SecretsManagerClient) {
	client := &SecretsManagerClient{Secrets: make(map[string]string)}
	return func(region string) (adaptor.SecretsManagerClient, error) {
		client.Region = region
		return client, nil
	}, client
}
