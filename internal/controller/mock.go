package controller

import (
	"context"
	"time"
)

// CannedOutput is the JavaScript listing every mock conversion returns.
const CannedOutput = `/**
 * Generate Fibonacci sequence up to n terms
 * @param {number} n - Number of terms to generate
 * @returns {number[]} - Array of Fibonacci numbers
 */
function calculateFibonacci(n) {
  const sequence = [];
  let a = 0;
  let b = 1;

  for (let i = 0; i < n; i++) {
    sequence.push(a);
    [a, b] = [b, a + b];
  }

  return sequence;
}

/**
 * Filter even numbers from a list
 * @param {number[]} numbers - Array of numbers to filter
 * @returns {number[]} - Array containing only even numbers
 */
function filterEvenNumbers(numbers) {
  return numbers.filter(num => num % 2 === 0);
}

// Main execution
const fibNumbers = calculateFibonacci(10);
console.log("Fibonacci sequence:", fibNumbers);

const evenFibs = filterEvenNumbers(fibNumbers);
console.log("Even Fibonacci numbers:", evenFibs);`

// MockConverter waits Delay and returns CannedOutput regardless of input.
type MockConverter struct {
	Delay time.Duration
}

// Convert implements Converter.
func (m MockConverter) Convert(ctx context.Context, _ string) (string, error) {
	if err := sleep(ctx, m.Delay); err != nil {
		return "", err
	}
	return CannedOutput, nil
}

// MockUploader waits Delay and accepts every file without reading it.
type MockUploader struct {
	Delay time.Duration
}

// Upload implements Uploader.
func (m MockUploader) Upload(ctx context.Context, _ FileRef) (Receipt, error) {
	if err := sleep(ctx, m.Delay); err != nil {
		return Receipt{}, err
	}
	return Receipt{Accepted: true}, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
