// Package vecmath содержит операции над embedding-векторами.
// Конвенция слоёв: энкодер возвращает ненормализованные векторы,
// нормализация для косинусного сходства — обязанность хранилища.
package vecmath

import "math"

// Dot возвращает скалярное произведение векторов.
// Для L2-нормализованных векторов совпадает с косинусным сходством.
func Dot(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}

	return float32(sum)
}

// Norm возвращает L2-норму вектора.
func Norm(v []float32) float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}

	return float32(math.Sqrt(sum))
}

// Normalized возвращает L2-нормализованную копию вектора.
// Нулевой вектор возвращается копией без изменений: делить не на что.
func Normalized(v []float32) []float32 {
	out := make([]float32, len(v))
	norm := Norm(v)
	if norm == 0 {
		copy(out, v)
		return out
	}

	for i, x := range v {
		out[i] = x / norm
	}

	return out
}

// Mean возвращает покомпонентное среднее векторов (mean pooling).
// Размерность результата — по первому вектору, пустой список даёт nil.
func Mean(vectors ...[]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}

	sums := make([]float64, len(vectors[0]))
	for _, v := range vectors {
		for i := 0; i < len(sums) && i < len(v); i++ {
			sums[i] += float64(v[i])
		}
	}

	mean := make([]float32, len(sums))
	n := float64(len(vectors))
	for i, x := range sums {
		mean[i] = float32(x / n)
	}

	return mean
}

// Cosine возвращает косинусное сходство двух векторов в диапазоне [-1, 1].
// Если один из векторов нулевой, сходство равно нулю.
func Cosine(a, b []float32) float32 {
	na, nb := Norm(a), Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}

	return Dot(a, b) / (na * nb)
}
