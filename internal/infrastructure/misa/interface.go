package misa

import (
	"context"
)

// ClientInterface defines the methods required from the MISA Money Keeper client.
type ClientInterface interface {
	Login(ctx context.Context, username, password string) (*Session, error)
	Token(ctx context.Context) (string, error)
	GetUserInfo(ctx context.Context) (*UserInfo, error)
	GetWalletAccounts(ctx context.Context, params WalletAccountParams) (*WalletAccountPage, error)
	GetWalletSummary(ctx context.Context) (*WalletSummary, error)
	GetTransactionAddresses(ctx context.Context) ([]TransactionAddress, error)
	SearchTransactions(ctx context.Context, params SearchParams) (*TransactionPage, error)
}
