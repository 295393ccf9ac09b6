// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package chain

// condensePromptTemplate drives the question condenser. The model must
// return JSON so the excerpt and the rewritten question can be split
// apart reliably. Args: chat history, follow-up question.
const condensePromptTemplate = `Given the following conversation and a follow up question, return the conversation history excerpt that includes any relevant context to the question if it exists and rephrase the follow up question to be a standalone question.

Chat History:
%s
Follow Up Input: %s

Format your response as JSON:
{"standalone_question": "<rephrased question here>", "history_excerpt": "<relevant chat history excerpt here, or empty string>"}`

// synthesizePromptTemplate drives the answer synthesizer. Args: context
// passages, standalone question.
const synthesizePromptTemplate = `Use the following pieces of context to answer the user's question. Don't worry about any URLs included, you're not expected to retrieve information from them. Your answer should be concise and to the point (no longer than 25 words), the general structure of your answer should be: Yes/No/Yes with configuration/Yes with customization/Yes with partner solution followed by a more descriptive version of the answer. No need to provide more information than is necessary. Be blunt and spartan. No need to say "based on the information you provided" or anything like that. Just give the answer. If no context is provided and you don't know the answer, just say that you don't know, don't try to make up an answer.
----------------
%s

Standalone question: %s

Answer:`
