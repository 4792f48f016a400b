package vaultfs

import (
	"errors"
	"testing"
)

// TestConfig_Validate tests the Config validation
func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{
			name:    "nil config",
			config:  nil,
			wantErr: true,
		},
		{
			name:    "default config",
			config:  DefaultConfig(),
			wantErr: false,
		},
		{
			name:    "zero config",
			config:  &Config{},
			wantErr: false,
		},
		{
			name:    "negative scratch size",
			config:  &Config{ScratchSize: -1},
			wantErr: true,
		},
		{
			name:    "scratch smaller than a block",
			config:  &Config{ScratchSize: 100},
			wantErr: true,
		},
		{
			name: "invalid parallel config",
			config: &Config{
				Parallel: ParallelConfig{Enabled: true, MaxWorkers: 4, MinBlocksForParallel: 0},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if err := (*Config)(nil).Validate(); !errors.Is(err, ErrNilConfig) {
		t.Errorf("nil Config.Validate() = %v, want ErrNilConfig", err)
	}
}

// TestParallelConfig_Validate tests ParallelConfig validation
func TestParallelConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  ParallelConfig
		wantErr bool
		errMsg  string
	}{
		{
			name: "disabled - always valid",
			config: ParallelConfig{
				Enabled: false,
			},
			wantErr: false,
		},
		{
			name: "negative workers",
			config: ParallelConfig{
				Enabled:              true,
				MaxWorkers:           -1,
				MinBlocksForParallel: 4,
			},
			wantErr: true,
			errMsg:  "parallel max workers cannot be negative",
		},
		{
			name: "too many workers",
			config: ParallelConfig{
				Enabled:              true,
				MaxWorkers:           2000,
				MinBlocksForParallel: 4,
			},
			wantErr: true,
			errMsg:  "parallel max workers must not exceed 1024",
		},
		{
			name: "zero min blocks",
			config: ParallelConfig{
				Enabled:              true,
				MaxWorkers:           4,
				MinBlocksForParallel: 0,
			},
			wantErr: true,
			errMsg:  "parallel min blocks threshold must be at least 1",
		},
		{
			name: "valid config",
			config: ParallelConfig{
				Enabled:              true,
				MaxWorkers:           8,
				MinBlocksForParallel: 4,
			},
			wantErr: false,
		},
		{
			name:    "default config",
			config:  DefaultParallelConfig(),
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParallelConfig.Validate() expected error, got nil")
				} else if err.Error() != tt.errMsg {
					t.Errorf("ParallelConfig.Validate() error = %q, want %q", err.Error(), tt.errMsg)
				}
			} else if err != nil {
				t.Errorf("ParallelConfig.Validate() unexpected error = %v", err)
			}
		})
	}
}

// TestCreateOptions_Validate tests CreateOptions validation
func TestCreateOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		opts    *CreateOptions
		wantErr bool
	}{
		{
			name:    "nil options",
			opts:    nil,
			wantErr: true,
		},
		{
			name:    "unencrypted minimal",
			opts:    &CreateOptions{Name: "box"},
			wantErr: false,
		},
		{
			name:    "short name",
			opts:    &CreateOptions{Name: "ab"},
			wantErr: true,
		},
		{
			name:    "multibyte name counts runes",
			opts:    &CreateOptions{Name: "äöü"},
			wantErr: false,
		},
		{
			name:    "odd block size",
			opts:    &CreateOptions{Name: "box", BlockSize: 1000},
			wantErr: true,
		},
		{
			name:    "block size too large",
			opts:    &CreateOptions{Name: "box", BlockSize: 2 * MaxBlockSize},
			wantErr: true,
		},
		{
			name:    "negative initial blocks",
			opts:    &CreateOptions{Name: "box", InitialBlocks: -1},
			wantErr: true,
		},
		{
			name: "password without key mode",
			opts: &CreateOptions{
				Name:       "box",
				Password:   []byte("pw"),
				DataCipher: DefaultDataCipher(),
			},
			wantErr: true,
		},
		{
			name: "password without data cipher",
			opts: &CreateOptions{
				Name:      "box",
				Password:  []byte("pw"),
				KeyCipher: DefaultKeyCipher(),
			},
			wantErr: true,
		},
		{
			name: "excessive pbkdf2 iterations",
			opts: &CreateOptions{
				Name:       "box",
				Password:   []byte("pw"),
				KeyCipher:  CipherParams{Mode: KeyModePBKDF2, ParamA: 0xFFFFFFFF},
				DataCipher: DefaultDataCipher(),
			},
			wantErr: true,
		},
		{
			name: "encrypted",
			opts: &CreateOptions{
				Name:       "box",
				Password:   []byte("pw"),
				KeyCipher:  DefaultKeyCipher(),
				DataCipher: DefaultDataCipher(),
				BlockSize:  512,
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("CreateOptions.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && StatusOf(err) != StatusInvalidParam {
				t.Errorf("StatusOf(%v) = %v, want %v", err, StatusOf(err), StatusInvalidParam)
			}
		})
	}
}
