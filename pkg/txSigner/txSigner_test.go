package txSigner

import (
	"context"
	"crypto/ecdsa"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"math/big"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/kms"
	"github.com/aws/aws-sdk-go/service/kms/kmsiface"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/aws/aws-sdk-go/service/secretsmanager/secretsmanageriface"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ganache's well-known first account
const testKeyHex = "4f3edf983ac636a65a842ce7c78d9aa706d3b113bce9c46f30d7d21715b23b1d"

var testKeyAddress = common.HexToAddress("0x90F8bf6A479f320ead074411a4B0e7944Ea8c9C1")

func newTestTx() *types.Transaction {
	to := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	return types.NewTx(&types.LegacyTx{
		Nonce:    3,
		GasPrice: big.NewInt(0),
		Gas:      100000,
		To:       &to,
		Data:     []byte{0xde, 0xad},
	})
}

func TestPrivateKeySigner(t *testing.T) {
	chainID := big.NewInt(73799)

	for _, key := range []string{testKeyHex, "0x" + testKeyHex} {
		s, err := NewPrivateKeySigner(key)
		require.NoError(t, err)

		addr, err := s.GetAddress()
		require.NoError(t, err)
		assert.Equal(t, testKeyAddress, addr)

		signed, err := s.SignTransaction(context.Background(), newTestTx(), chainID)
		require.NoError(t, err)
		sender, err := types.Sender(types.LatestSignerForChainID(chainID), signed)
		require.NoError(t, err)
		assert.Equal(t, testKeyAddress, sender)
	}

	_, err := NewPrivateKeySigner("")
	assert.ErrorIs(t, err, ErrEmptyPrivateKey)
	_, err = NewPrivateKeySigner("0xnothex")
	assert.Error(t, err)
}

type fakeKMS struct {
	kmsiface.KMSAPI
	key   *ecdsa.PrivateKey
	highS bool
}

func (f *fakeKMS) GetPublicKeyWithContext(_ aws.Context, _ *kms.GetPublicKeyInput, _ ...request.Option) (*kms.GetPublicKeyOutput, error) {
	pub := crypto.FromECDSAPub(&f.key.PublicKey)
	der, err := asn1.Marshal(subjectPublicKeyInfo{
		Algorithm: pkix.AlgorithmIdentifier{
			Algorithm:  asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1},
			Parameters: asn1.RawValue{FullBytes: mustMarshal(asn1.ObjectIdentifier{1, 3, 132, 0, 10})},
		},
		PublicKey: asn1.BitString{Bytes: pub, BitLength: len(pub) * 8},
	})
	if err != nil {
		return nil, err
	}
	return &kms.GetPublicKeyOutput{PublicKey: der}, nil
}

func (f *fakeKMS) SignWithContext(_ aws.Context, in *kms.SignInput, _ ...request.Option) (*kms.SignOutput, error) {
	sig, err := crypto.Sign(in.Message, f.key)
	if err != nil {
		return nil, err
	}
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	if f.highS {
		s = new(big.Int).Sub(secp256k1N, s)
	}
	der, err := asn1.Marshal(ecdsaSignature{R: r, S: s})
	if err != nil {
		return nil, err
	}
	return &kms.SignOutput{Signature: der}, nil
}

func mustMarshal(v interface{}) []byte {
	b, err := asn1.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func TestAWSKMSSigner(t *testing.T) {
	key, err := crypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)
	chainID := big.NewInt(246)

	for _, highS := range []bool{false, true} {
		client := &fakeKMS{key: key, highS: highS}
		s, err := NewAWSKMSSignerWithClient(context.Background(), client, "alias/deployer")
		require.NoError(t, err)

		addr, err := s.GetAddress()
		require.NoError(t, err)
		assert.Equal(t, testKeyAddress, addr)

		signed, err := s.SignTransaction(context.Background(), newTestTx(), chainID)
		require.NoError(t, err, "highS=%v", highS)
		sender, err := types.Sender(types.LatestSignerForChainID(chainID), signed)
		require.NoError(t, err)
		assert.Equal(t, testKeyAddress, sender)
	}
}

type fakeSecrets struct {
	secretsmanageriface.SecretsManagerAPI
	value *string
	err   error
}

func (f *fakeSecrets) GetSecretValueWithContext(_ aws.Context, in *secretsmanager.GetSecretValueInput, _ ...request.Option) (*secretsmanager.GetSecretValueOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &secretsmanager.GetSecretValueOutput{Name: in.SecretId, SecretString: f.value}, nil
}

func TestLoadPrivateKeyFromSecret(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		client  *fakeSecrets
		want    string
		wantErr bool
	}{
		{name: "bare hex", client: &fakeSecrets{value: aws.String("0x" + testKeyHex + "\n")}, want: "0x" + testKeyHex},
		{name: "json", client: &fakeSecrets{value: aws.String(`{"privateKey":"` + testKeyHex + `"}`)}, want: testKeyHex},
		{name: "json without key", client: &fakeSecrets{value: aws.String(`{"other":"x"}`)}, wantErr: true},
		{name: "nil secret string", client: &fakeSecrets{}, wantErr: true},
		{name: "service error", client: &fakeSecrets{err: errors.New("AccessDenied")}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LoadPrivateKeyFromSecret(ctx, tt.client, "market/deploy-key")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			s, err := NewPrivateKeySigner(got)
			require.NoError(t, err)
			addr, _ := s.GetAddress()
			assert.Equal(t, testKeyAddress, addr)
		})
	}
}
