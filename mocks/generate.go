package mocks

//go:generate mockgen -destination=./mock_provider.go -package=mocks github.com/rxtech-lab/argo-papertrade/internal/marketdata/provider Provider
//go:generate mockgen -destination=./mock_store.go -package=mocks github.com/rxtech-lab/argo-papertrade/internal/store Store,Tx,AccountStore,HoldingsStore,TransactionStore
