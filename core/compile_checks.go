package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ ClaimService        = (*Service)(nil)
	_ Store               = (*MemoryStore)(nil)
	_ ClaimAttemptLimiter = (*MemoryAttemptLimiter)(nil)
	_ ClaimCodeGenerator  = RandomClaimCodeGenerator{}
	_ ConfigProvider      = (*CfgxConfigProvider)(nil)
	_ OptionsResolver     = GoOptionsResolver{}

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
