package util

// Histogram buckets shared by the services. Durations are in seconds.
var (
	// 128µs to 262ms
	MetricsBucketsMicroSeconds = []float64{
		128e-6, 256e-6, 512e-6, 1024e-6, 2048e-6, 4096e-6, 8192e-6, 16384e-6, 32768e-6, 65536e-6, 131072e-6, 262144e-6,
	}

	// 1ms to 4s
	MetricsBucketsMilliSeconds = []float64{
		1e-3, 2e-3, 4e-3, 8e-3, 16e-3, 32e-3, 64e-3, 128e-3, 256e-3, 512e-3, 1024e-3, 2048e-3, 4096e-3,
	}

	// 64ms to 131s, for block validations that may wait on peers
	MetricsBucketsMilliLongSeconds = []float64{
		64e-3, 128e-3, 256e-3, 512e-3, 1024e-3, 2048e-3, 4096e-3, 8192e-3, 16384e-3, 32768e-3, 65536e-3, 131072e-3,
	}

	// counts of transactions, inputs and outputs
	MetricsBucketsSizeSmall = []float64{
		1, 2, 4, 8, 16, 32, 64, 128, 256, 512, 1024, 4096,
	}
)
