package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/morezero/beacon-dapp/pkg/address"
	"github.com/morezero/beacon-dapp/pkg/beacon"
	"github.com/morezero/beacon-dapp/pkg/events"
)

const buildersLogPrefix = "client:builders"

// PermissionInput asks for scopes on a network. Zero values use defaults.
type PermissionInput struct {
	Network *beacon.Network
	Scopes  []beacon.PermissionScope
}

// PermissionOutput is the reduced view of the account that was granted.
type PermissionOutput struct {
	SenderID          string                   `json:"senderId"`
	AccountIdentifier string                   `json:"accountIdentifier"`
	Address           string                   `json:"address"`
	PublicKey         string                   `json:"publicKey"`
	Network           beacon.Network           `json:"network"`
	Scopes            []beacon.PermissionScope `json:"scopes"`
}

type SignPayloadInput struct {
	Payload       string
	SigningType   beacon.SigningType
	SourceAddress string
}

type SignPayloadOutput struct {
	Signature   string             `json:"signature"`
	SigningType beacon.SigningType `json:"signingType"`
}

type OperationInput struct {
	OperationDetails []json.RawMessage
	Network          *beacon.Network
	SourceAddress    string
}

type OperationOutput struct {
	TransactionHash string `json:"transactionHash"`
}

type BroadcastInput struct {
	SignedTransaction string
	Network           *beacon.Network
}

type BroadcastOutput struct {
	TransactionHash string `json:"transactionHash"`
}

// RequestPermissions asks the wallet for scopes and, when granted, stores the
// account and makes it active.
func (c *Client) RequestPermissions(ctx context.Context, in PermissionInput) (*PermissionOutput, error) {
	const kind = beacon.PermissionRequest

	network := c.networkOr(in.Network)
	scopes := in.Scopes
	if len(scopes) == 0 {
		scopes = append([]beacon.PermissionScope(nil), beacon.DefaultScopes...)
	}

	res, err := c.Submit(ctx, beacon.PermissionRequestBody{
		AppMetadata: beacon.AppMetadata{Name: c.appName, Icon: c.appIcon},
		Network:     network,
		Scopes:      scopes,
	})
	if err != nil {
		return nil, c.fail(ctx, kind, err)
	}

	msg := res.Message
	if len(msg.Scopes) == 0 {
		return nil, c.fail(ctx, kind, beacon.NewError(beacon.CodeInvalidInput, "wallet granted no scopes"))
	}
	addr, err := address.FromPublicKey(msg.PublicKey)
	if err != nil {
		return nil, c.fail(ctx, kind, beacon.WrapError(beacon.CodeInvalidInput, err, "wallet returned an unusable public key"))
	}
	if msg.Network != nil && msg.Network.Type != "" {
		network = *msg.Network
	}

	account := &beacon.AccountInfo{
		AccountIdentifier: address.AccountIdentifier(addr, network),
		SenderID:          msg.SenderID,
		Origin:            beacon.AccountOrigin{Type: res.Context.Origin, ID: res.Context.ID},
		Address:           addr,
		PublicKey:         msg.PublicKey,
		Network:           network,
		Scopes:            append([]beacon.PermissionScope(nil), msg.Scopes...),
		Threshold:         msg.Threshold,
		ConnectedAt:       c.now().UTC(),
	}

	if err := c.accounts.AddAccount(ctx, account); err != nil {
		return nil, c.fail(ctx, kind, fmt.Errorf("%s - failed to store account %s: %w", buildersLogPrefix, account.AccountIdentifier, err))
	}
	if err := c.session.SetActive(ctx, account); err != nil {
		slog.Warn(fmt.Sprintf("%s - Account %s is active but was not persisted: %v", buildersLogPrefix, account.AccountIdentifier, err))
	}

	out := &PermissionOutput{
		SenderID:          account.SenderID,
		AccountIdentifier: account.AccountIdentifier,
		Address:           account.Address,
		PublicKey:         account.PublicKey,
		Network:           account.Network,
		Scopes:            account.Scopes,
	}
	c.succeed(ctx, kind, out, res.Context)
	return out, nil
}

// RequestSignPayload asks the active account to sign a payload.
func (c *Client) RequestSignPayload(ctx context.Context, in SignPayloadInput) (*SignPayloadOutput, error) {
	const kind = beacon.SignPayloadRequest

	if in.Payload == "" {
		return nil, c.fail(ctx, kind, beacon.NewError(beacon.CodeInvalidInput, "payload must be provided"))
	}
	active := c.session.Active()
	if active == nil {
		return nil, c.fail(ctx, kind, beacon.NewError(beacon.CodeNoActiveAccount, "no active account to sign with"))
	}

	signingType := in.SigningType
	if signingType == "" {
		signingType = beacon.SigningTypeRaw
	}
	source := in.SourceAddress
	if source == "" {
		source = active.Address
	}

	res, err := c.Submit(ctx, beacon.SignPayloadRequestBody{
		SigningType:   signingType,
		Payload:       in.Payload,
		SourceAddress: source,
	})
	if err != nil {
		return nil, c.fail(ctx, kind, err)
	}

	out := &SignPayloadOutput{Signature: res.Message.Signature, SigningType: res.Message.SigningType}
	if out.SigningType == "" {
		out.SigningType = signingType
	}
	c.succeed(ctx, kind, out, res.Context)
	return out, nil
}

// RequestOperation asks the wallet to forge, sign and inject operations.
func (c *Client) RequestOperation(ctx context.Context, in OperationInput) (*OperationOutput, error) {
	const kind = beacon.OperationRequest

	if len(in.OperationDetails) == 0 {
		return nil, c.fail(ctx, kind, beacon.NewError(beacon.CodeInvalidInput, "operation details must be provided"))
	}
	active := c.session.Active()
	if active == nil {
		return nil, c.fail(ctx, kind, beacon.NewError(beacon.CodeNoActiveAccount, "no active account to operate with"))
	}

	network := c.networkOr(in.Network)
	if (in.Network == nil || in.Network.Type == "") && active.Network.Type != "" {
		network = active.Network
	}
	source := in.SourceAddress
	if source == "" {
		source = active.Address
	}

	res, err := c.Submit(ctx, beacon.OperationRequestBody{
		Network:          network,
		OperationDetails: in.OperationDetails,
		SourceAddress:    source,
	})
	if err != nil {
		return nil, c.fail(ctx, kind, err)
	}

	out := &OperationOutput{TransactionHash: res.Message.TransactionHash}
	c.succeed(ctx, kind, out, res.Context)
	return out, nil
}

// RequestBroadcast asks the wallet to inject an already signed transaction.
func (c *Client) RequestBroadcast(ctx context.Context, in BroadcastInput) (*BroadcastOutput, error) {
	const kind = beacon.BroadcastRequest

	if in.SignedTransaction == "" {
		return nil, c.fail(ctx, kind, beacon.NewError(beacon.CodeInvalidInput, "signed transaction must be provided"))
	}

	res, err := c.Submit(ctx, beacon.BroadcastRequestBody{
		Network:           c.networkOr(in.Network),
		SignedTransaction: in.SignedTransaction,
	})
	if err != nil {
		return nil, c.fail(ctx, kind, err)
	}

	out := &BroadcastOutput{TransactionHash: res.Message.TransactionHash}
	c.succeed(ctx, kind, out, res.Context)
	return out, nil
}

func (c *Client) networkOr(n *beacon.Network) beacon.Network {
	if n == nil || n.Type == "" {
		return c.defaultNetwork
	}
	return *n
}

func (c *Client) succeed(ctx context.Context, kind beacon.MessageType, output interface{}, cc beacon.ConnectionContext) {
	ev, _ := events.ForKind(kind)
	c.publish(ctx, events.New(ev.Success, &events.SuccessPayload{Output: output, Context: cc}))
}

func (c *Client) fail(ctx context.Context, kind beacon.MessageType, err error) error {
	ev, _ := events.ForKind(kind)
	c.publish(ctx, events.New(ev.Error, events.NewErrorPayload(err)))
	return err
}
